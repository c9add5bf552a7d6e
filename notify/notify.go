package notify

import (
	"context"
	"log"
)

// Notifier delivers user-facing notices. The presentation layer
// injects its own implementation; nothing in this module reaches for a
// global dispatcher.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// LogNotifier writes notices to the process log. It is the default
// when no notifier is injected.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, text string) error {
	log.Printf("notice: %s", text)
	return nil
}

// NopNotifier discards notices.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }
