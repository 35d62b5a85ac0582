package model

import (
	"time"
)

type Follow struct {
	FollowerID int64     `db:"follower_id" json:"follower_id"`
	FolloweeID int64     `db:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FollowRequestStatus is the state of a follow request.
type FollowRequestStatus string

const (
	FollowRequestPending  FollowRequestStatus = "pending"
	FollowRequestAccepted FollowRequestStatus = "accepted"
	FollowRequestRejected FollowRequestStatus = "rejected"
)

// FollowRequest is unique per (follower, followee); re-requesting resets the row to pending.
type FollowRequest struct {
	ID         int64               `db:"id" json:"id"`
	FollowerID int64               `db:"follower_id" json:"follower_id"`
	FolloweeID int64               `db:"followee_id" json:"followee_id"`
	Status     FollowRequestStatus `db:"status" json:"status"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`

	Follower *UserSummary `json:"follower,omitempty"`
}

// FollowOutcome tells the caller which branch Follow took.
type FollowOutcome string

const (
	FollowOutcomeFollowed    FollowOutcome = "followed"
	FollowOutcomeRequestSent FollowOutcome = "request_sent"
)

type UserSummary struct {
	ID          int64  `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	IsFollowing bool   `json:"is_following"`
}

type FollowListResponse struct {
	Users   []UserSummary `json:"users"`
	HasMore bool          `json:"has_more"`
}

// Relationship describes the viewer's edge towards another user.
type Relationship struct {
	IsFollowing       bool `json:"is_following"`
	HasPendingRequest bool `json:"has_pending_request"`
}
