// Package chat integrates the external real-time messaging provider and
// implements idempotent channel provisioning for rooms.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/scholarsync/collab-plane/internal/models"
)

// ChannelTypeMessaging is the provider-side channel type used for all
// room channels.
const ChannelTypeMessaging = "messaging"

// Provider-side user roles.
const (
	UserRoleUser      = "user"
	UserRoleModerator = "moderator"
)

// User is a provider-side user record.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Channel is a provider-side channel record.
type Channel struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Members   []string `json:"members"`
	CreatedBy string   `json:"created_by"`
}

// ChannelInput holds the fields for channel creation.
type ChannelInput struct {
	Name      string   `json:"name,omitempty"`
	Members   []string `json:"members"`
	CreatedBy string   `json:"created_by"`
}

// ChannelFilter selects channels by caller-chosen identifier.
type ChannelFilter struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Provider is the external messaging provider contract. Channel
// identifiers are caller-chosen, which is what makes deterministic-id
// provisioning idempotent.
type Provider interface {
	// CreateUser ensures a provider-side user exists. Creating an
	// existing user must not fail.
	CreateUser(ctx context.Context, id, role string) error
	// QueryUsers returns the provider-side users among ids.
	QueryUsers(ctx context.Context, ids []string) ([]User, error)
	// CreateChannel creates a channel with a caller-chosen identifier.
	CreateChannel(ctx context.Context, channelType, id string, input ChannelInput) (*Channel, error)
	// QueryChannels returns channels matching the filter.
	QueryChannels(ctx context.Context, filter ChannelFilter) ([]Channel, error)
	// AddMembers adds members to a channel, optionally posting a system
	// message.
	AddMembers(ctx context.Context, channelType, id string, members []string, systemMessage string) error
	// SendSystemMessage posts a system message to a channel.
	SendSystemMessage(ctx context.Context, channelType, id, text string) error
	// AddModerator grants a user the moderator role on a channel.
	AddModerator(ctx context.Context, channelType, id, userID string) error
}

// ChannelID derives the deterministic channel identifier for a room.
// Research rooms get their own namespace so their identifiers cannot
// collide with direct/group channels.
func ChannelID(room *models.Room) string {
	if room.Kind == models.RoomKindResearch {
		return "research_" + room.ID
	}
	return "room_" + room.ID
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("provider error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// IsAlreadyExists reports whether err is the provider's duplicate-resource
// response.
func IsAlreadyExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 409
}

// IsNotFound reports whether err is the provider's missing-resource
// response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsTransient reports whether err is a retryable failure: a network
// error, a timeout, or a 5xx/429 provider response.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
