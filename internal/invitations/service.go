// Package invitations implements the room invitation lifecycle:
// pending -> accepted | rejected | cancelled, with sender-initiated
// resend and hard delete.
package invitations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scholarsync/collab-plane/internal/apperr"
	"github.com/scholarsync/collab-plane/internal/chat"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/store"
)

// Notifier records a notification and pushes it to connected sessions.
type Notifier interface {
	NotifyBestEffort(ctx context.Context, recipientID string, typ models.NotificationType, payload any)
}

// Service manages invitation records and their state transitions.
type Service struct {
	st     store.Store
	chat   *chat.Coordinator
	notify Notifier
	logger *slog.Logger
}

// NewService creates an invitation service.
func NewService(st store.Store, coordinator *chat.Coordinator, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		st:     st,
		chat:   coordinator,
		notify: notifier,
		logger: logger.With("component", "invitations"),
	}
}

// Send creates a pending invitation and notifies the invited user. At
// most one pending invitation exists per (room, user) pair; the store's
// unique index backs the query-then-guard check against races.
func (s *Service) Send(ctx context.Context, roomID, invitedUserID, senderID string) (*models.Invitation, error) {
	room, err := s.st.Rooms().Get(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("room lookup: %w", err))
	}
	if room == nil || !room.IsActive {
		return nil, apperr.NotFound(apperr.CodeNotFound, "room not found")
	}
	if !room.HasParticipant(senderID) {
		return nil, apperr.Authorization("only room participants can invite")
	}
	if !room.Settings.AllowMemberInvite && !room.IsAdmin(senderID) {
		return nil, apperr.Authorization("room settings restrict invitations to admins")
	}

	missing, err := s.st.Profiles().Missing(ctx, []string{invitedUserID})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("verifying invitee: %w", err))
	}
	if len(missing) > 0 {
		return nil, apperr.Validation(apperr.CodeInvalidParticipant,
			fmt.Sprintf("unknown user %s", invitedUserID))
	}

	if room.HasParticipant(invitedUserID) {
		return nil, apperr.Conflict(apperr.CodeAlreadyMember, "user is already a room member")
	}
	pending, err := s.st.Invitations().FindPending(ctx, roomID, invitedUserID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("pending lookup: %w", err))
	}
	if pending != nil {
		return nil, apperr.Conflict(apperr.CodeDuplicateInvitation,
			"a pending invitation already exists for this user")
	}

	inv := &models.Invitation{
		ID:            uuid.New().String(),
		RoomID:        roomID,
		RoomName:      room.Name,
		InvitedUserID: invitedUserID,
		SenderID:      senderID,
		Status:        models.InvitationStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.st.Invitations().Create(ctx, inv); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Conflict(apperr.CodeDuplicateInvitation,
				"a pending invitation already exists for this user")
		}
		return nil, apperr.Internal(fmt.Errorf("creating invitation: %w", err))
	}

	s.notify.NotifyBestEffort(ctx, invitedUserID, models.NotificationRoomInvite, models.RoomInvitePayload{
		InvitationID: inv.ID,
		RoomID:       roomID,
		RoomName:     room.Name,
		SenderID:     senderID,
	})
	return inv, nil
}

// Respond accepts or rejects a pending invitation. Only the invited
// user may respond. Acceptance adds the user to the room and flips the
// status in one transaction.
func (s *Service) Respond(ctx context.Context, invitationID, userID string, accept bool) (*models.Invitation, error) {
	inv, err := s.st.Invitations().Get(ctx, invitationID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("invitation lookup: %w", err))
	}
	if inv == nil {
		return nil, apperr.NotFound(apperr.CodeNotFound, "invitation not found")
	}
	if inv.InvitedUserID != userID {
		return nil, apperr.Authorization("only the invited user can respond")
	}
	if !inv.IsPending() {
		return nil, apperr.Conflict(apperr.CodeAlreadyProcessed,
			fmt.Sprintf("invitation is already %s", inv.Status))
	}

	now := time.Now().UTC()
	status := models.InvitationStatusRejected
	if accept {
		status = models.InvitationStatusAccepted
	}

	if accept {
		err = s.st.WithTx(ctx, func(tx store.Store) error {
			if err := tx.Rooms().AddParticipant(ctx, inv.RoomID, userID); err != nil {
				return err
			}
			if err := tx.Memberships().Add(ctx, &models.Membership{
				RoomID: inv.RoomID,
				UserID: userID,
				Role:   models.RoleMember,
			}); err != nil {
				return err
			}
			return tx.Invitations().SetStatus(ctx, inv.ID, models.InvitationStatusPending, status, &now)
		})
	} else {
		err = s.st.Invitations().SetStatus(ctx, inv.ID, models.InvitationStatusPending, status, &now)
	}
	if errors.Is(err, store.ErrStaleStatus) {
		return nil, apperr.Conflict(apperr.CodeAlreadyProcessed,
			"invitation was processed concurrently")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("applying response: %w", err))
	}
	inv.Status = status
	inv.RespondedAt = &now

	if accept {
		// Channel membership is best effort; the room read path repairs
		// an unprovisioned channel before this matters.
		room, rerr := s.st.Rooms().Get(ctx, inv.RoomID)
		if rerr == nil && room != nil && room.ChannelRef != "" {
			if aerr := s.chat.AddMembers(ctx, room, []string{userID},
				fmt.Sprintf("%s joined the room", userID)); aerr != nil {
				s.logger.Warn("adding channel member after accept",
					"room_id", room.ID, "user_id", userID, "error", aerr)
			}
		}
	}

	notifType := models.NotificationInviteRejected
	if accept {
		notifType = models.NotificationInviteAccepted
	}
	s.notify.NotifyBestEffort(ctx, inv.SenderID, notifType, models.InviteResponsePayload{
		InvitationID: inv.ID,
		RoomID:       inv.RoomID,
		RoomName:     inv.RoomName,
		ResponderID:  userID,
	})
	return inv, nil
}

// Cancel soft-retracts a pending invitation. Sender only; a cancelled
// invitation can later be resent.
func (s *Service) Cancel(ctx context.Context, invitationID, userID string) (*models.Invitation, error) {
	inv, err := s.senderOwned(ctx, invitationID, userID)
	if err != nil {
		return nil, err
	}
	if !inv.IsPending() {
		return nil, apperr.Conflict(apperr.CodeAlreadyProcessed,
			fmt.Sprintf("invitation is already %s", inv.Status))
	}
	err = s.st.Invitations().SetStatus(ctx, inv.ID, models.InvitationStatusPending, models.InvitationStatusCancelled, nil)
	if errors.Is(err, store.ErrStaleStatus) {
		return nil, apperr.Conflict(apperr.CodeAlreadyProcessed,
			"invitation was processed concurrently")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("cancelling invitation: %w", err))
	}
	inv.Status = models.InvitationStatusCancelled
	inv.RespondedAt = nil
	return inv, nil
}

// Resend flips a cancelled invitation back to pending and re-fires the
// notification. It never duplicates an existing pending invitation for
// the pair.
func (s *Service) Resend(ctx context.Context, invitationID, userID string) (*models.Invitation, error) {
	inv, err := s.senderOwned(ctx, invitationID, userID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case models.InvitationStatusPending:
		return nil, apperr.Conflict(apperr.CodeAlreadyPending, "invitation is already pending")
	case models.InvitationStatusAccepted, models.InvitationStatusRejected:
		return nil, apperr.Conflict(apperr.CodeAlreadyProcessed,
			fmt.Sprintf("invitation is already %s", inv.Status))
	}

	pending, err := s.st.Invitations().FindPending(ctx, inv.RoomID, inv.InvitedUserID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("pending lookup: %w", err))
	}
	if pending != nil {
		return nil, apperr.Conflict(apperr.CodeAlreadyPending,
			"another pending invitation exists for this user")
	}

	room, err := s.st.Rooms().Get(ctx, inv.RoomID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("room lookup: %w", err))
	}
	if room != nil && room.HasParticipant(inv.InvitedUserID) {
		return nil, apperr.Conflict(apperr.CodeAlreadyMember, "user joined the room in the meantime")
	}

	err = s.st.Invitations().SetStatus(ctx, inv.ID, models.InvitationStatusCancelled, models.InvitationStatusPending, nil)
	if errors.Is(err, store.ErrStaleStatus) {
		return nil, apperr.Conflict(apperr.CodeAlreadyProcessed,
			"invitation was processed concurrently")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("reopening invitation: %w", err))
	}
	inv.Status = models.InvitationStatusPending
	inv.RespondedAt = nil

	s.notify.NotifyBestEffort(ctx, inv.InvitedUserID, models.NotificationRoomInvite, models.RoomInvitePayload{
		InvitationID: inv.ID,
		RoomID:       inv.RoomID,
		RoomName:     inv.RoomName,
		SenderID:     inv.SenderID,
	})
	return inv, nil
}

// Delete hard-removes an invitation regardless of status. Sender only.
// Unlike Cancel, this is irreversible.
func (s *Service) Delete(ctx context.Context, invitationID, userID string) error {
	inv, err := s.senderOwned(ctx, invitationID, userID)
	if err != nil {
		return err
	}
	if err := s.st.Invitations().Delete(ctx, inv.ID); err != nil {
		return apperr.Internal(fmt.Errorf("deleting invitation: %w", err))
	}
	return nil
}

// ListForUser returns invitations addressed to userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Invitation, error) {
	invs, err := s.st.Invitations().ListByInvitee(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("listing invitations: %w", err))
	}
	return invs, nil
}

// ListForRoom returns a room's invitations. Participants only.
func (s *Service) ListForRoom(ctx context.Context, roomID, userID string) ([]*models.Invitation, error) {
	room, err := s.st.Rooms().Get(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("room lookup: %w", err))
	}
	if room == nil {
		return nil, apperr.NotFound(apperr.CodeNotFound, "room not found")
	}
	if !room.HasParticipant(userID) {
		return nil, apperr.Authorization("not a room participant")
	}
	invs, err := s.st.Invitations().ListByRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("listing invitations: %w", err))
	}
	return invs, nil
}

// senderOwned loads an invitation and checks sender ownership.
func (s *Service) senderOwned(ctx context.Context, invitationID, userID string) (*models.Invitation, error) {
	inv, err := s.st.Invitations().Get(ctx, invitationID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("invitation lookup: %w", err))
	}
	if inv == nil {
		return nil, apperr.NotFound(apperr.CodeNotFound, "invitation not found")
	}
	if inv.SenderID != userID {
		return nil, apperr.Authorization("only the sender can manage this invitation")
	}
	return inv, nil
}
