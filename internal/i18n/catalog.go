// Package i18n renders notification messages and error texts per locale.
//
// Notifications persist their type and interpolation data, so any supported locale can
// be rendered at read time from the same facts the canonical English message was built from.
package i18n

import (
	"strings"

	"golang.org/x/text/language"

	"readingclub/internal/model"
)

// Latvian is the second shipped locale.
var Latvian = language.Latvian

// Supported lists the shipped locales; the first is the fallback.
var Supported = []language.Tag{language.English, Latvian}

var matcher = language.NewMatcher(Supported)

type template func(d model.NotificationData) string

type locale struct {
	notifications map[model.NotificationType]template
	errors        map[string]string
	contentTypes  map[string]string
	actions       map[string]string
}

// catalog is assigned in init because its templates consult it, which a
// package-level initializer cannot express without an initialization cycle.
var catalog map[language.Tag]locale

func init() {
	catalog = map[language.Tag]locale{
		language.English: {
			notifications: map[model.NotificationType]template{
				model.NotificationThreadLike: func(d model.NotificationData) string {
					return d.ActorUsername + " liked your thread"
				},
				model.NotificationCommentLike: func(d model.NotificationData) string {
					return d.ActorUsername + " liked your comment"
				},
				model.NotificationThreadReply: func(d model.NotificationData) string {
					return d.ActorUsername + " commented on your thread: " + d.ThreadTitle
				},
				model.NotificationCommentReply: func(d model.NotificationData) string {
					return d.ActorUsername + " replied to your comment"
				},
				model.NotificationNewFollower: func(d model.NotificationData) string {
					return d.ActorUsername + " started following you"
				},
				model.NotificationFollowRequest: func(d model.NotificationData) string {
					return d.ActorUsername + " wants to follow you"
				},
				model.NotificationFollowRequestAccepted: func(d model.NotificationData) string {
					return d.ActorUsername + " accepted your follow request"
				},
				model.NotificationContentModerated: func(d model.NotificationData) string {
					return withReason("Your "+d.ContentType+" was "+d.Action+" by a moderator", d.Reason)
				},
				model.NotificationUserBanned: func(d model.NotificationData) string {
					return withReason("Your account has been banned by a moderator", d.Reason)
				},
			},
		},
		Latvian: {
			notifications: map[model.NotificationType]template{
				model.NotificationThreadLike: func(d model.NotificationData) string {
					return d.ActorUsername + " novērtēja jūsu diskusiju"
				},
				model.NotificationCommentLike: func(d model.NotificationData) string {
					return d.ActorUsername + " novērtēja jūsu komentāru"
				},
				model.NotificationThreadReply: func(d model.NotificationData) string {
					return d.ActorUsername + " komentēja jūsu diskusiju: " + d.ThreadTitle
				},
				model.NotificationCommentReply: func(d model.NotificationData) string {
					return d.ActorUsername + " atbildēja uz jūsu komentāru"
				},
				model.NotificationNewFollower: func(d model.NotificationData) string {
					return d.ActorUsername + " sāka jums sekot"
				},
				model.NotificationFollowRequest: func(d model.NotificationData) string {
					return d.ActorUsername + " vēlas jums sekot"
				},
				model.NotificationFollowRequestAccepted: func(d model.NotificationData) string {
					return d.ActorUsername + " apstiprināja jūsu sekošanas pieprasījumu"
				},
				model.NotificationContentModerated: func(d model.NotificationData) string {
					return withReason("Moderators "+latvianAction(d.Action)+" jūsu "+latvianContent(d.ContentType), d.Reason)
				},
				model.NotificationUserBanned: func(d model.NotificationData) string {
					return withReason("Moderators ir bloķējis jūsu kontu", d.Reason)
				},
			},
			errors: map[string]string{
				"USER_NOT_FOUND":           "Lietotājs nav atrasts",
				"FOLLOW_REQUEST_NOT_FOUND": "Sekošanas pieprasījums nav atrasts",
				"NOTIFICATION_NOT_FOUND":   "Paziņojums nav atrasts",
				"DEVICE_TOKEN_NOT_FOUND":   "Ierīces marķieris nav atrasts",
				"THREAD_NOT_FOUND":         "Diskusija nav atrasta",
				"COMMENT_NOT_FOUND":        "Komentārs nav atrasts",
				"TARGET_NOT_FOUND":         "Saturs nav atrasts",
				"READING_PROGRESS_HIDDEN":  "Lasīšanas progress nav redzams",
				"MODERATOR_REQUIRED":       "Nav atļauts. Nepieciešama moderatora piekļuve.",
				"ADMIN_REQUIRED":           "Nav atļauts. Nepieciešama administratora piekļuve.",
				"ALREADY_ADMIN":            "Lietotājs jau ir administrators",
				"NOT_ADMIN":                "Lietotājs nav administrators",
				"PROMOTE_FLAGGED":          "Nevar paaugstināt bloķētu lietotāju",
				"CANNOT_DEMOTE_SELF":       "Jūs nevarat noņemt sev administratora lomu",
				"NOT_CONTENT_OWNER":        "Nav atļaujas",
				"INVALID_PASSWORD":         "Parole ir nepareiza",
				"CANNOT_FOLLOW_SELF":       "Jūs nevarat sekot sev",
				"FOLLOW_DISABLED":          "Šis lietotājs neatļauj jaunus sekotājus",
				"ALREADY_FOLLOWING":        "Jūs jau sekojat šim lietotājam",
				"DUPLICATE_REQUEST":        "Jums jau ir neapstiprināts sekošanas pieprasījums šim lietotājam",
				"ALREADY_FLAGGED":          "Lietotājs jau ir bloķēts",
				"NOT_FLAGGED":              "Lietotājs nav bloķēts",
				"PROTECTED_TARGET":         "Nevar bloķēt moderatorus vai administratorus",
				"DELETE_UNCONFIRMED":       "Apstiprinājumam jābūt DELETE",
				"INVALID_VISIBILITY":       "Redzamībai jābūt public, followers vai private",
				"INVALID_TARGET":           "target_type jābūt thread vai comment",
				"CONTENT_REQUIRED":         "Saturs ir obligāts",
				"REASON_REQUIRED":          "Iemesls ir obligāts",
			},
			contentTypes: map[string]string{
				"thread":  "diskusiju",
				"comment": "komentāru",
			},
			actions: map[string]string{
				"removed": "noņēma",
			},
		},
	}
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + ": " + reason
}

func latvianContent(contentType string) string {
	if s, ok := catalog[Latvian].contentTypes[contentType]; ok {
		return s
	}
	return contentType
}

func latvianAction(action string) string {
	if s, ok := catalog[Latvian].actions[action]; ok {
		return s
	}
	return action
}

// Match picks the best supported locale for an Accept-Language header value.
func Match(acceptLanguage string) language.Tag {
	if strings.TrimSpace(acceptLanguage) == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// Parse maps a configured locale name ("en", "lv") to a supported tag.
func Parse(name string) language.Tag {
	tag, err := language.Parse(name)
	if err != nil {
		return language.English
	}
	_, idx, _ := matcher.Match(tag)
	return Supported[idx]
}

// Render produces the message of a notification in the given locale, falling back to English.
func Render(tag language.Tag, t model.NotificationType, d model.NotificationData) string {
	if loc, ok := catalog[tag]; ok {
		if fn, ok := loc.notifications[t]; ok {
			return fn(d)
		}
	}
	if fn, ok := catalog[language.English].notifications[t]; ok {
		return fn(d)
	}
	return "You have a new notification"
}

// Canonical renders the English message stored with the notification row.
func Canonical(t model.NotificationType, d model.NotificationData) string {
	return Render(language.English, t, d)
}

// ErrorMessage localizes a domain error code; fallback is used when no translation exists.
func ErrorMessage(tag language.Tag, code, fallback string) string {
	if loc, ok := catalog[tag]; ok {
		if msg, ok := loc.errors[code]; ok {
			return msg
		}
	}
	return fallback
}
