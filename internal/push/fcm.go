package push

import (
	"context"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// fcmMaxTokens is FCM's multicast limit.
const fcmMaxTokens = 500

// FCMSender sends through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender builds a sender from service-account fields. privateKey may carry
// literal "\n" sequences as found in .env files.
func NewFCMSender(ctx context.Context, projectID, clientEmail, privateKey string) (*FCMSender, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Printf("[FCM] Initialized for project: %s", projectID)
	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, tokens []string, msg Message) (*Result, error) {
	result := &Result{}
	for start := 0; start < len(tokens); start += fcmMaxTokens {
		end := min(start+fcmMaxTokens, len(tokens))
		batch := tokens[start:end]

		resp, err := s.client.SendEachForMulticast(ctx, multicast(batch, msg))
		if err != nil {
			return nil, fmt.Errorf("send multicast: %w", err)
		}

		result.Sent += resp.SuccessCount
		result.Failed += resp.FailureCount
		for i, r := range resp.Responses {
			if r.Success {
				continue
			}
			log.Printf("[FCM] Token %d failed: %v", start+i, r.Error)
			if messaging.IsUnregistered(r.Error) {
				result.Unregistered = append(result.Unregistered, batch[i])
			}
		}
	}

	log.Printf("[FCM] Sent to %d tokens: %d success, %d failure", len(tokens), result.Sent, result.Failed)
	return result, nil
}

func multicast(tokens []string, msg Message) *messaging.MulticastMessage {
	aps := &messaging.Aps{Sound: "default", Badge: msg.Badge}
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: aps},
		},
	}
}
