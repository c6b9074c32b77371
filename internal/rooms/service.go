package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

// Service is the room store manager. It owns room records, their
// memberships, and the ordering between the durable room write and the
// external channel provisioning step.
type Service struct {
	st     store.Store
	chat   *chat.Coordinator
	notify Notifier
	logger *slog.Logger
}

// NewService creates a room service.
func NewService(st store.Store, coordinator *chat.Coordinator, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		st:     st,
		chat:   coordinator,
		notify: notifier,
		logger: logger.With("component", "rooms"),
	}
}

// CreateResult is the outcome of a room creation. Warning carries the
// non-fatal post-link failure for research rooms; the room itself is
// always valid when the error return is nil.
type CreateResult struct {
	Room    *models.Room `json:"room"`
	Warning string       `json:"warning,omitempty"`
}

// CreateRoom validates the request, deduplicates direct rooms, writes
// the room record, then provisions the external channel. The room row is
// durably written before provisioning; a provisioning failure leaves
// channel_ref unset and is repaired lazily on the next read.
func (s *Service) CreateRoom(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	norm, err := Validate(req)
	if err != nil {
		return nil, err
	}

	missing, err := s.st.Profiles().Missing(ctx, norm.Participants)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("verifying participants: %w", err))
	}
	if len(missing) > 0 {
		return nil, apperr.Validation(apperr.CodeInvalidParticipant,
			fmt.Sprintf("unknown participants: %v", missing))
	}

	if norm.Kind == models.RoomKindDirect {
		existing, err := s.st.Rooms().FindDirectByPair(ctx, norm.Participants[0], norm.Participants[1])
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("direct room lookup: %w", err))
		}
		if existing != nil {
			// Same pair, same room. Provisioning is idempotent, so this
			// also repairs a missing channel on the surviving record.
			if err := s.ensureChannel(ctx, existing); err != nil {
				return nil, err
			}
			return &CreateResult{Room: existing}, nil
		}
	}

	room := &models.Room{
		ID:           uuid.New().String(),
		Kind:         norm.Kind,
		Name:         norm.Name,
		Description:  norm.Description,
		CreatedBy:    norm.CreatorID,
		Participants: norm.Participants,
		IsActive:     true,
		Settings:     norm.Settings,
	}
	if norm.Kind != models.RoomKindDirect {
		room.Admins = []string{norm.CreatorID}
	}

	var warning string
	var post *models.Post
	if norm.Kind == models.RoomKindResearch && norm.PostID != "" {
		post, err = s.st.Posts().Get(ctx, norm.PostID)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("post lookup: %w", err))
		}
		if post == nil {
			warning = fmt.Sprintf("post %s not found; room created without link", norm.PostID)
		}
	}

	err = s.st.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Rooms().Create(ctx, room); err != nil {
			return err
		}
		for _, p := range room.Participants {
			role := models.RoleMember
			if norm.Kind != models.RoomKindDirect && p == norm.CreatorID {
				role = models.RoleAdmin
			}
			if err := tx.Memberships().Add(ctx, &models.Membership{
				RoomID: room.ID,
				UserID: p,
				Role:   role,
			}); err != nil {
				return err
			}
		}
		if post != nil {
			if err := tx.Rooms().LinkPost(ctx, room.ID, post.ID); err != nil {
				return err
			}
			if err := tx.Posts().SetDiscussionRoom(ctx, post.ID, room.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateDirectRoom) {
			// Lost a creation race for the pair. Converge on the winner.
			existing, ferr := s.st.Rooms().FindDirectByPair(ctx, norm.Participants[0], norm.Participants[1])
			if ferr != nil || existing == nil {
				return nil, apperr.Internal(fmt.Errorf("direct room converge: %w", err))
			}
			if err := s.ensureChannel(ctx, existing); err != nil {
				return nil, err
			}
			return &CreateResult{Room: existing}, nil
		}
		return nil, apperr.Internal(fmt.Errorf("creating room: %w", err))
	}
	if post != nil {
		room.PostLinks = []string{post.ID}
	}

	if err := s.ensureChannel(ctx, room); err != nil {
		// The record stays; channel_ref is repaired on the next read.
		s.logger.Error("channel provisioning failed after room write",
			"room_id", room.ID, "error", err)
		return nil, err
	}

	payload := models.RoomAddedPayload{
		RoomID:   room.ID,
		RoomKind: room.Kind,
		RoomName: room.Name,
		AddedBy:  room.CreatedBy,
	}
	for _, p := range room.Participants {
		if p == room.CreatedBy {
			continue
		}
		s.notify.NotifyBestEffort(ctx, p, models.NotificationRoomAdded, payload)
	}

	return &CreateResult{Room: room, Warning: warning}, nil
}

// ensureChannel provisions the room's channel if channel_ref is unset
// and records the reference. Safe to call repeatedly.
func (s *Service) ensureChannel(ctx context.Context, room *models.Room) error {
	if room.ChannelRef != "" {
		return nil
	}
	channelID, err := s.chat.Provision(ctx, room)
	if err != nil {
		return err
	}
	if err := s.st.Rooms().SetChannelRef(ctx, room.ID, channelID); err != nil {
		return apperr.Internal(fmt.Errorf("recording channel ref: %w", err))
	}
	room.ChannelRef = channelID
	return nil
}

// GetRoom returns a room visible to userID. A missing channel reference
// is repaired in place; repair failure is logged but does not block the
// read, the room is simply not yet usable for realtime messaging.
func (s *Service) GetRoom(ctx context.Context, roomID, userID string) (*models.Room, error) {
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
	if room.IsActive && room.ChannelRef == "" {
		if err := s.ensureChannel(ctx, room); err != nil {
			s.logger.Warn("lazy channel repair failed",
				"room_id", room.ID, "error", err)
		}
	}
	return room, nil
}

// ListRooms returns the active rooms userID participates in, most
// recently updated first.
func (s *Service) ListRooms(ctx context.Context, userID string) ([]*models.Room, error) {
	rooms, err := s.st.Rooms().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("listing rooms: %w", err))
	}
	return rooms, nil
}

// ListMemberships returns the reverse index for userID: every room the
// user belongs to, with the user's role.
func (s *Service) ListMemberships(ctx context.Context, userID string) ([]*models.Membership, error) {
	memberships, err := s.st.Memberships().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("listing memberships: %w", err))
	}
	return memberships, nil
}

// AttachPost links a post to an existing research room. Unlike the
// creation-time link, a missing post here is a hard failure.
func (s *Service) AttachPost(ctx context.Context, roomID, postID, userID string) error {
	room, err := s.st.Rooms().Get(ctx, roomID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("room lookup: %w", err))
	}
	if room == nil {
		return apperr.NotFound(apperr.CodeNotFound, "room not found")
	}
	if room.Kind != models.RoomKindResearch {
		return apperr.Validation(apperr.CodeInvalidRoomKind,
			"posts can only be attached to research rooms")
	}
	if !room.HasParticipant(userID) {
		return apperr.Authorization("not a room participant")
	}
	post, err := s.st.Posts().Get(ctx, postID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("post lookup: %w", err))
	}
	if post == nil {
		return apperr.NotFound(apperr.CodePostNotFound, "post not found")
	}
	err = s.st.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Rooms().LinkPost(ctx, roomID, postID); err != nil {
			return err
		}
		return tx.Posts().SetDiscussionRoom(ctx, postID, roomID)
	})
	if err != nil {
		return apperr.Internal(fmt.Errorf("linking post: %w", err))
	}
	return nil
}

// DeactivateRoom soft-deletes a room. Group and research rooms require
// an admin; direct rooms have no admins, so either participant may
// deactivate.
func (s *Service) DeactivateRoom(ctx context.Context, roomID, userID string) error {
	room, err := s.st.Rooms().Get(ctx, roomID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("room lookup: %w", err))
	}
	if room == nil {
		return apperr.NotFound(apperr.CodeNotFound, "room not found")
	}
	if room.Kind == models.RoomKindDirect {
		if !room.HasParticipant(userID) {
			return apperr.Authorization("not a room participant")
		}
	} else if !room.IsAdmin(userID) {
		return apperr.Authorization("only room admins can deactivate a room")
	}
	if err := s.st.Rooms().Deactivate(ctx, roomID); err != nil {
		return apperr.Internal(fmt.Errorf("deactivating room: %w", err))
	}
	s.logger.Info("room deactivated", "room_id", roomID, "user_id", userID)
	return nil
}
