package model

import (
	"time"
)

// Visibility is the tier of one privacy axis.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

// Valid reports whether v is one of the three tiers.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate:
		return true
	}
	return false
}

// Role of a user account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User represents a user in the system
type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	Email        string `db:"email" json:"-"`
	PasswordHash string `db:"password_hash" json:"-"` // "-" hides from JSON output
	Role         Role   `db:"role" json:"role"`

	ProfileVisibility         Visibility `db:"profile_visibility" json:"profile_visibility"`
	ReadingProgressVisibility Visibility `db:"reading_progress_visibility" json:"reading_progress_visibility"`
	ActivityVisibility        Visibility `db:"activity_visibility" json:"activity_visibility"`
	AllowFollows              bool       `db:"allow_follows" json:"allow_follows"`
	RequireFollowApproval     bool       `db:"require_follow_approval" json:"require_follow_approval"`

	IsFlagged  bool       `db:"is_flagged" json:"is_flagged"`
	FlaggedAt  *time.Time `db:"flagged_at" json:"flagged_at,omitempty"`
	FlagReason *string    `db:"flag_reason" json:"flag_reason,omitempty"`
	FlaggedBy  *int64     `db:"flagged_by" json:"flagged_by,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsModerator is true for moderators and admins.
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// Summary returns the public identity fields of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username}
}

// PrivacySettings is the user-editable subset of User.
type PrivacySettings struct {
	ProfileVisibility         Visibility `json:"profile_visibility"`
	ReadingProgressVisibility Visibility `json:"reading_progress_visibility"`
	ActivityVisibility        Visibility `json:"activity_visibility"`
	AllowFollows              bool       `json:"allow_follows"`
	RequireFollowApproval     bool       `json:"require_follow_approval"`
}

// Privacy extracts the privacy settings of u.
func (u *User) Privacy() PrivacySettings {
	return PrivacySettings{
		ProfileVisibility:         u.ProfileVisibility,
		ReadingProgressVisibility: u.ReadingProgressVisibility,
		ActivityVisibility:        u.ActivityVisibility,
		AllowFollows:              u.AllowFollows,
		RequireFollowApproval:     u.RequireFollowApproval,
	}
}

// UpdatePrivacyRequest is a partial update; nil fields are left unchanged.
type UpdatePrivacyRequest struct {
	ProfileVisibility         *Visibility `json:"profile_visibility" validate:"omitempty,oneof=public followers private"`
	ReadingProgressVisibility *Visibility `json:"reading_progress_visibility" validate:"omitempty,oneof=public followers private"`
	ActivityVisibility        *Visibility `json:"activity_visibility" validate:"omitempty,oneof=public followers private"`
	AllowFollows              *bool       `json:"allow_follows"`
	RequireFollowApproval     *bool       `json:"require_follow_approval"`
}

// Apply merges r into s and validates the result.
func (r UpdatePrivacyRequest) Apply(s PrivacySettings) (PrivacySettings, error) {
	for _, v := range []*Visibility{r.ProfileVisibility, r.ReadingProgressVisibility, r.ActivityVisibility} {
		if v != nil && !v.Valid() {
			return s, ErrInvalidVisibility
		}
	}
	if r.ProfileVisibility != nil {
		s.ProfileVisibility = *r.ProfileVisibility
	}
	if r.ReadingProgressVisibility != nil {
		s.ReadingProgressVisibility = *r.ReadingProgressVisibility
	}
	if r.ActivityVisibility != nil {
		s.ActivityVisibility = *r.ActivityVisibility
	}
	if r.AllowFollows != nil {
		s.AllowFollows = *r.AllowFollows
	}
	if r.RequireFollowApproval != nil {
		s.RequireFollowApproval = *r.RequireFollowApproval
	}
	return s, nil
}

// ProfileResponse is a user's profile as seen by a viewer.
type ProfileResponse struct {
	User                   *User `json:"user"`
	IsFollowing            bool  `json:"is_following"`
	HasPendingRequest      bool  `json:"has_pending_request"`
	CanViewReadingProgress bool  `json:"can_view_reading_progress"`
	CanViewActivity        bool  `json:"can_view_activity"`
}

// FlaggedUser is a row of the moderation queue.
type FlaggedUser struct {
	ID         int64        `db:"id" json:"id"`
	Username   string       `db:"username" json:"username"`
	FlaggedAt  *time.Time   `db:"flagged_at" json:"flagged_at"`
	FlagReason *string      `db:"flag_reason" json:"flag_reason"`
	FlaggedBy  *UserSummary `json:"flagged_by,omitempty"`
}

// FlagUserRequest is the body of a flag action.
type FlagUserRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// DeleteAccountRequest is the body of an account deletion.
type DeleteAccountRequest struct {
	Password     string `json:"password" validate:"required"`
	Confirmation string `json:"confirmation" validate:"required"`
}

// DeleteContentRequest is the body of a bulk content deletion.
type DeleteContentRequest struct {
	Password string `json:"password" validate:"required"`
}

// ContentDeletionResult reports how many rows a bulk content deletion removed.
type ContentDeletionResult struct {
	ThreadsDeleted  int64 `json:"threads_deleted"`
	CommentsDeleted int64 `json:"comments_deleted"`
}
