package model

import "errors"

// Error kinds. Every domain error wraps exactly one of these so the HTTP boundary can
// pick a status with errors.Is without knowing each sentinel.
var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// Error is a client-correctable domain failure with a stable code.
type Error struct {
	Code    string
	Message string
	kind    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the error kind (ErrNotFound, ErrPermission, ErrConflict, ErrValidation).
func (e *Error) Kind() error { return e.kind }

func newError(kind error, code, message string) *Error {
	return &Error{Code: code, Message: message, kind: kind}
}

var (
	ErrUserNotFound          = newError(ErrNotFound, "USER_NOT_FOUND", "user not found")
	ErrFollowRequestNotFound = newError(ErrNotFound, "FOLLOW_REQUEST_NOT_FOUND", "follow request not found")
	ErrNotificationNotFound  = newError(ErrNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")
	ErrDeviceTokenNotFound   = newError(ErrNotFound, "DEVICE_TOKEN_NOT_FOUND", "device token not found")
	ErrThreadNotFound        = newError(ErrNotFound, "THREAD_NOT_FOUND", "thread not found")
	ErrCommentNotFound       = newError(ErrNotFound, "COMMENT_NOT_FOUND", "comment not found")
	ErrTargetNotFound        = newError(ErrNotFound, "TARGET_NOT_FOUND", "target not found")

	// ErrProfileHidden is a not-found so a private profile is indistinguishable from a missing one.
	ErrProfileHidden         = newError(ErrNotFound, "USER_NOT_FOUND", "user not found")
	ErrReadingProgressHidden = newError(ErrNotFound, "READING_PROGRESS_HIDDEN", "reading progress is not visible")

	ErrModeratorRequired = newError(ErrPermission, "MODERATOR_REQUIRED", "moderator access required")
	ErrAdminRequired     = newError(ErrPermission, "ADMIN_REQUIRED", "admin access required")
	ErrNotContentOwner   = newError(ErrPermission, "NOT_CONTENT_OWNER", "not the owner of this content")
	ErrInvalidPassword   = newError(ErrPermission, "INVALID_PASSWORD", "password is incorrect")

	ErrCannotFollowSelf  = newError(ErrConflict, "CANNOT_FOLLOW_SELF", "cannot follow yourself")
	ErrFollowDisabled    = newError(ErrConflict, "FOLLOW_DISABLED", "this user does not allow new followers")
	ErrAlreadyFollowing  = newError(ErrConflict, "ALREADY_FOLLOWING", "already following this user")
	ErrDuplicateRequest  = newError(ErrConflict, "DUPLICATE_REQUEST", "a follow request is already pending")
	ErrAlreadyFlagged    = newError(ErrConflict, "ALREADY_FLAGGED", "user is already banned")
	ErrNotFlagged        = newError(ErrConflict, "NOT_FLAGGED", "user is not banned")
	ErrProtectedTarget   = newError(ErrConflict, "PROTECTED_TARGET", "cannot ban moderators or admins")
	ErrAlreadyAdmin      = newError(ErrConflict, "ALREADY_ADMIN", "user is already an admin")
	ErrNotAdmin          = newError(ErrConflict, "NOT_ADMIN", "user is not an admin")
	ErrPromoteFlagged    = newError(ErrConflict, "PROMOTE_FLAGGED", "cannot promote a banned user")
	ErrCannotDemoteSelf  = newError(ErrConflict, "CANNOT_DEMOTE_SELF", "cannot remove your own admin role")
	ErrDeleteUnconfirmed = newError(ErrValidation, "DELETE_UNCONFIRMED", "confirmation must be DELETE")

	ErrInvalidVisibility = newError(ErrValidation, "INVALID_VISIBILITY", "visibility must be public, followers or private")
	ErrInvalidTarget     = newError(ErrValidation, "INVALID_TARGET", "target_type must be thread or comment")
	ErrContentRequired   = newError(ErrValidation, "CONTENT_REQUIRED", "content is required")
	ErrReasonRequired    = newError(ErrValidation, "REASON_REQUIRED", "reason is required")
)

// CodeOf returns the stable code of a domain error, or "" for anything else.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
