package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scholarsync/collab-plane/internal/apperr"
	"github.com/scholarsync/collab-plane/internal/models"
)

// Coordinator provisions the backing real-time channel for a room,
// idempotently. The channel identifier is derived from the room id, so
// retries and racing requests for the same room converge on the same
// channel without a side index.
type Coordinator struct {
	provider Provider
	logger   *slog.Logger
}

// NewCoordinator creates a provisioning coordinator.
func NewCoordinator(provider Provider, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{provider: provider, logger: logger}
}

// Provision ensures the room's channel exists and returns its
// identifier.
//
// If the channel already exists it is returned unchanged; that lookup is
// the idempotency guarantee. Provider-side user records created before a
// later failure are left in place (they are harmless no-ops on retry);
// the caller must not persist a channel ref unless Provision succeeds.
func (c *Coordinator) Provision(ctx context.Context, room *models.Room) (string, error) {
	channelID := ChannelID(room)

	existing, err := c.provider.QueryChannels(ctx, ChannelFilter{
		Type: ChannelTypeMessaging,
		ID:   channelID,
	})
	if err != nil {
		return "", c.classify("querying channel "+channelID, err)
	}
	if len(existing) > 0 {
		c.logger.Debug("channel already provisioned", "channel_id", channelID, "room_id", room.ID)
		return channelID, nil
	}

	// Ensure every participant exists provider-side before creating the
	// channel.
	if err := c.ensureUsers(ctx, room.Participants); err != nil {
		return "", err
	}

	_, err = c.provider.CreateChannel(ctx, ChannelTypeMessaging, channelID, ChannelInput{
		Name:      room.Name,
		Members:   room.Participants,
		CreatedBy: room.CreatedBy,
	})
	if err != nil {
		// Create-then-verify: a racing request may have created the
		// channel between our query and create.
		requery, qerr := c.provider.QueryChannels(ctx, ChannelFilter{
			Type: ChannelTypeMessaging,
			ID:   channelID,
		})
		if qerr == nil && len(requery) > 0 {
			c.logger.Info("channel created by concurrent request", "channel_id", channelID)
			return channelID, nil
		}
		return "", apperr.ProvisioningFailed(
			fmt.Sprintf("creating channel %s for room %s", channelID, room.ID), err)
	}

	if room.Kind == models.RoomKindResearch {
		// Channel exists at this point, so these are best effort.
		msg := fmt.Sprintf("Research room %q created", room.Name)
		if err := c.provider.SendSystemMessage(ctx, ChannelTypeMessaging, channelID, msg); err != nil {
			c.logger.Warn("failed to post creation message", "channel_id", channelID, "error", err)
		}
		if err := c.provider.AddModerator(ctx, ChannelTypeMessaging, channelID, room.CreatedBy); err != nil {
			c.logger.Warn("failed to set creator moderator", "channel_id", channelID, "error", err)
		}
	}

	c.logger.Info("channel provisioned", "channel_id", channelID, "room_id", room.ID, "kind", room.Kind)
	return channelID, nil
}

// AddMembers adds participants to an already provisioned channel.
func (c *Coordinator) AddMembers(ctx context.Context, room *models.Room, members []string, systemMessage string) error {
	if room.ChannelRef == "" {
		return apperr.ProvisioningFailed("room has no provisioned channel", nil)
	}
	if err := c.ensureUsers(ctx, members); err != nil {
		return err
	}
	if err := c.provider.AddMembers(ctx, ChannelTypeMessaging, room.ChannelRef, members, systemMessage); err != nil {
		return c.classify("adding channel members", err)
	}
	return nil
}

// ensureUsers creates provider-side users for the ids the provider does
// not already know. On retries most participants already exist, so the
// query spares one create round trip per known user.
func (c *Coordinator) ensureUsers(ctx context.Context, ids []string) error {
	known := make(map[string]bool, len(ids))
	users, err := c.provider.QueryUsers(ctx, ids)
	if err != nil {
		return c.classify("querying provider users", err)
	}
	for _, u := range users {
		known[u.ID] = true
	}
	for _, id := range ids {
		if known[id] {
			continue
		}
		if err := c.provider.CreateUser(ctx, id, UserRoleUser); err != nil {
			return c.classify("creating provider user "+id, err)
		}
	}
	return nil
}

// Ping reports provider reachability for health checks. An empty user
// query is the cheapest authenticated round trip the provider offers.
func (c *Coordinator) Ping(ctx context.Context) error {
	_, err := c.provider.QueryUsers(ctx, nil)
	return err
}

// classify maps provider failures onto the service error taxonomy:
// retryable network/5xx failures become transient, everything else is a
// provisioning failure.
func (c *Coordinator) classify(op string, err error) error {
	if IsTransient(err) {
		return apperr.Transient(op, err)
	}
	return apperr.ProvisioningFailed(op, err)
}
