package dto

import (
	"time"

	"github.com/quizdeck/quizdeck-api/internal/models"
)

// ClassCreateRequest describes the payload for creating a class.
type ClassCreateRequest struct {
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// ClassUpdateRequest describes the payload for updating a class.
type ClassUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=3"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Archived    *bool   `json:"archived"`
}

// ClassJoinRequest carries the invite code a candidate joins with.
type ClassJoinRequest struct {
	InviteCode string `json:"invite_code" validate:"required,len=8"`
}

// ClassResponse is the serialized class representation.
type ClassResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	InviteCode  string    `json:"invite_code,omitempty"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewClassResponse converts a model into a DTO. The invite code is only
// included for admins.
func NewClassResponse(model models.Class, includeInvite bool) ClassResponse {
	resp := ClassResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		Archived:    model.Archived,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if includeInvite {
		resp.InviteCode = model.InviteCode
	}
	return resp
}

// NewClassResponseSlice converts a slice of models into DTOs.
func NewClassResponseSlice(classes []models.Class, includeInvite bool) []ClassResponse {
	responses := make([]ClassResponse, 0, len(classes))
	for _, class := range classes {
		responses = append(responses, NewClassResponse(class, includeInvite))
	}
	return responses
}

// RosterEntryResponse is a single member on a class roster.
type RosterEntryResponse struct {
	UserID   uint      `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Branch   string    `json:"branch"`
	JoinedAt time.Time `json:"joined_at"`
}

// NewRosterResponse converts memberships into roster entries.
func NewRosterResponse(members []models.ClassMembership) []RosterEntryResponse {
	entries := make([]RosterEntryResponse, 0, len(members))
	for _, m := range members {
		entries = append(entries, RosterEntryResponse{
			UserID:   m.UserID,
			Name:     m.User.Name,
			Email:    m.User.Email,
			Branch:   m.User.Branch,
			JoinedAt: m.CreatedAt,
		})
	}
	return entries
}
