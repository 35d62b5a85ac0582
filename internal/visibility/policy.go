// Package visibility decides what a viewer may see of another user.
//
// Each privacy axis (profile, reading progress, activity) is evaluated on its own, so a
// user can have a public profile with private activity. The rules, first match wins:
//
//  1. anonymous viewer: only public
//  2. viewer is the subject: always
//  3. public: always
//  4. followers: only if the viewer follows the subject
//  5. private (or anything unrecognised): never
package visibility

import "readingclub/internal/model"

// FollowerFunc reports whether viewerID follows subjectID.
type FollowerFunc func(viewerID, subjectID int64) bool

// CanView applies the rules to one setting. viewer may be nil; isFollower is only
// consulted for the followers tier.
func CanView(setting model.Visibility, viewer, subject *model.User, isFollower FollowerFunc) bool {
	if viewer == nil {
		return setting == model.VisibilityPublic
	}
	if subject != nil && viewer.ID == subject.ID {
		return true
	}
	switch setting {
	case model.VisibilityPublic:
		return true
	case model.VisibilityFollowers:
		if subject == nil || isFollower == nil {
			return false
		}
		return isFollower(viewer.ID, subject.ID)
	default:
		return false
	}
}

func CanViewProfile(viewer, subject *model.User, isFollower FollowerFunc) bool {
	return CanView(subject.ProfileVisibility, viewer, subject, isFollower)
}

func CanViewReadingProgress(viewer, subject *model.User, isFollower FollowerFunc) bool {
	return CanView(subject.ReadingProgressVisibility, viewer, subject, isFollower)
}

func CanViewActivity(viewer, subject *model.User, isFollower FollowerFunc) bool {
	return CanView(subject.ActivityVisibility, viewer, subject, isFollower)
}

// CanBeFollowed reports whether subject accepts new followers at all.
func CanBeFollowed(subject *model.User) bool {
	return subject.AllowFollows
}

// FollowSet adapts a precomputed set of followee IDs (those the viewer follows) into a
// FollowerFunc for batch evaluation.
func FollowSet(viewerID int64, followees map[int64]bool) FollowerFunc {
	return func(v, s int64) bool {
		return v == viewerID && followees[s]
	}
}
