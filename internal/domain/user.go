package domain

import "time"

// UserRole enumerates caller roles.
type UserRole string

const (
	RoleCitizen       UserRole = "citizen"
	RoleAuthorityUser UserRole = "authority"
	RoleAdmin         UserRole = "admin"
)

// User is the domain model for citizens, authority operators and admins.
// The gamification fields (points, counters, badges) form the reporter
// ledger; they only ever increase and are mutated through ledger operations.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Phone          string
	City           string
	Role           UserRole
	AuthorityType  *AuthorityType
	Points         int
	IssuesReported int
	IssuesResolved int
	Badges         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasBadge reports whether the user already holds the named badge.
func (u *User) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b == name {
			return true
		}
	}
	return false
}

// ReporterTotals is the post-credit snapshot returned by ledger operations,
// enabling badge evaluation without a second read.
type ReporterTotals struct {
	Points         int
	IssuesReported int
	IssuesResolved int
	Badges         []string
}
