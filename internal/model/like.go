package model

import "time"

// Like is a toggle, unique per (user, target).
type Like struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	TargetType RefType   `db:"target_type" json:"target_type"`
	TargetID   int64     `db:"target_id" json:"target_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// LikeRequest is the validated like payload.
type LikeRequest struct {
	TargetType RefType `json:"target_type" validate:"required,oneof=thread comment"`
	TargetID   int64   `json:"target_id" validate:"required,gt=0"`
}

// Ref returns the target as a polymorphic reference.
func (r LikeRequest) Ref() Ref { return Ref{Type: r.TargetType, ID: r.TargetID} }

// LikeStatus is the aggregate like state of a target.
type LikeStatus struct {
	LikeCount int  `json:"like_count"`
	UserLiked bool `json:"user_liked"`
}

// LikeToggleResponse reports the state after a toggle.
type LikeToggleResponse struct {
	Liked bool `json:"liked"`
}

// IsLikeable reports whether t can be liked.
func (t RefType) IsLikeable() bool {
	return t == RefThread || t == RefComment
}
