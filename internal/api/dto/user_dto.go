package dto

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Name          string                `json:"name"`
	Email         string                `json:"email"`
	Password      string                `json:"password"`
	Phone         string                `json:"phone"`
	City          string                `json:"city"`
	Role          domain.UserRole       `json:"role"`
	AuthorityType *domain.AuthorityType `json:"authority_type,omitempty"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse returns the signed token and its expiry.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public user shape.
type UserResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Email         string                `json:"email"`
	City          string                `json:"city,omitempty"`
	Role          domain.UserRole       `json:"role"`
	AuthorityType *domain.AuthorityType `json:"authority_type,omitempty"`
}

// AchievementsResponse is the reporter ledger view.
type AchievementsResponse struct {
	UserID         string   `json:"user_id"`
	Name           string   `json:"name"`
	Points         int      `json:"points"`
	IssuesReported int      `json:"issues_reported"`
	IssuesResolved int      `json:"issues_resolved"`
	Badges         []string `json:"badges"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		City:          user.City,
		Role:          user.Role,
		AuthorityType: user.AuthorityType,
	}
}

// NewAchievementsResponse maps the ledger fields of a user.
func NewAchievementsResponse(user *domain.User) AchievementsResponse {
	badges := user.Badges
	if badges == nil {
		badges = []string{}
	}
	return AchievementsResponse{
		UserID:         user.ID,
		Name:           user.Name,
		Points:         user.Points,
		IssuesReported: user.IssuesReported,
		IssuesResolved: user.IssuesResolved,
		Badges:         badges,
	}
}
