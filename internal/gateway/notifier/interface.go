package notifier

import "context"

// TextNotifier delivers one plain or markdown text message.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
