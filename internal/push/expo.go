package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

// ExpoSender sends through Expo's Push API. Tokens look like "ExponentPushToken[xxx]".
type ExpoSender struct {
	httpClient *http.Client
	endpoint   string
}

type expoMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Badge    *int              `json:"badge,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "MessageTooBig", ...
	} `json:"details,omitempty"`
}

// NewExpoSender builds a sender for endpoint; empty means Expo's public API.
func NewExpoSender(endpoint string) *ExpoSender {
	if endpoint == "" {
		endpoint = expoPushURL
	}
	return &ExpoSender{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
	}
}

// IsExpoToken reports whether token has Expo's push token shape.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

func (s *ExpoSender) Send(ctx context.Context, tokens []string, msg Message) (*Result, error) {
	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if IsExpoToken(token) {
			valid = append(valid, token)
		} else {
			log.Printf("[ExpoPush] Skipping invalid token format: %s", token[:min(20, len(token))])
		}
	}

	result := &Result{}
	if len(valid) == 0 {
		return result, nil
	}

	payload, err := json.Marshal(expoMessage{
		To:       valid,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Badge:    msg.Badge,
		Priority: "high",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed expoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// The push was accepted; only the ticket breakdown is lost.
		log.Printf("[ExpoPush] Failed to parse response: %v", err)
		result.Sent = len(valid)
		return result, nil
	}

	// Tickets come back in the order of the "to" list.
	for i, ticket := range parsed.Data {
		if ticket.Status == "ok" {
			result.Sent++
			continue
		}
		result.Failed++
		log.Printf("[ExpoPush] Token %d failed: %s (error: %s)", i, ticket.Message, ticket.Details.Error)
		if ticket.Details.Error == "DeviceNotRegistered" && i < len(valid) {
			result.Unregistered = append(result.Unregistered, valid[i])
		}
	}

	log.Printf("[ExpoPush] Sent to %d tokens: %d success, %d failed", len(valid), result.Sent, result.Failed)
	return result, nil
}
