package model

import (
	"time"
)

// DeviceToken is a user's registered device for push notifications.
// A user may have several devices.
type DeviceToken struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Token     string    `db:"token" json:"-"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Platform constants
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// RegisterTokenRequest is the body of a device token registration.
type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform" validate:"required,oneof=ios android"`
}

// RemoveTokenRequest is the body of a device token removal.
type RemoveTokenRequest struct {
	Token string `json:"token" validate:"required"`
}
