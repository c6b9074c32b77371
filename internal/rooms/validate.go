// Package rooms implements room validation and the room store manager.
package rooms

import (
	"strings"

	"github.com/scholarsync/collab-plane/internal/apperr"
	"github.com/scholarsync/collab-plane/internal/models"
)

// CreateRequest is a raw room provisioning request.
type CreateRequest struct {
	Kind         models.RoomKind
	Name         string
	Description  string
	CreatorID    string
	Participants []string
	PostID       string
	Settings     *models.RoomSettings
}

// NormalizedRequest is a validated creation request. Participants are
// deduplicated in insertion order and always include the creator.
type NormalizedRequest struct {
	Kind         models.RoomKind
	Name         string
	Description  string
	CreatorID    string
	Participants []string
	PostID       string
	Settings     models.RoomSettings
}

// defaultSettings are applied when the request carries none.
var defaultSettings = models.RoomSettings{
	AllowMemberInvite: true,
	AllowMemberRemove: false,
	IsPublic:          false,
}

// Validate checks and normalizes a creation request. It has no side
// effects; rules are applied in order and the first violation wins.
func Validate(req CreateRequest) (*NormalizedRequest, error) {
	if !req.Kind.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidRoomKind,
			"room kind must be direct, group, or research")
	}
	if req.CreatorID == "" {
		return nil, apperr.Validation(apperr.CodeInvalidParticipant,
			"creator is required")
	}

	participants := normalizeParticipants(req.CreatorID, req.Participants)
	name := strings.TrimSpace(req.Name)

	switch req.Kind {
	case models.RoomKindDirect:
		if len(participants) != 2 {
			return nil, apperr.Validation(apperr.CodeInvalidParticipantCount,
				"direct messages must have exactly two participants")
		}
		// Direct rooms are unnamed.
		name = ""
	case models.RoomKindGroup:
		if len(participants) < 3 {
			return nil, apperr.Validation(apperr.CodeInvalidParticipantCount,
				"group messages must have at least three participants")
		}
		if name == "" {
			return nil, apperr.Validation(apperr.CodeMissingName,
				"group rooms require a name")
		}
	case models.RoomKindResearch:
		if name == "" {
			return nil, apperr.Validation(apperr.CodeMissingName,
				"research rooms require a name")
		}
	}

	settings := defaultSettings
	if req.Settings != nil {
		settings = *req.Settings
	}

	return &NormalizedRequest{
		Kind:         req.Kind,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		CreatorID:    req.CreatorID,
		Participants: participants,
		PostID:       req.PostID,
		Settings:     settings,
	}, nil
}

// normalizeParticipants dedupes in insertion order, placing the creator
// first. Insertion order is meaningful for research member listings.
func normalizeParticipants(creatorID string, participants []string) []string {
	seen := map[string]bool{creatorID: true}
	result := []string{creatorID}
	for _, p := range participants {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}
