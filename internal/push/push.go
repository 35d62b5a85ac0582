// Package push delivers notifications to mobile devices.
//
// Two providers are supported: Expo (React Native apps, no credentials needed) and
// Firebase Cloud Messaging. Both report tokens the provider no longer recognises so
// the caller can prune them.
package push

import "context"

// Message is what a device shows. Data is handed to the app untouched.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
	Badge *int
}

// Result summarises one send.
type Result struct {
	Sent   int
	Failed int
	// Unregistered holds tokens the provider rejected as no longer valid.
	Unregistered []string
}

// Sender sends one message to many device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) (*Result, error)
}

// Noop drops every message. Used when no provider is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, tokens []string, msg Message) (*Result, error) {
	return &Result{}, nil
}
