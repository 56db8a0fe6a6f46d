package alert

//go:generate mockgen -destination=alertmock/notifier_mock.go -package=alertmock . Notifier

import "context"

// Notifier delivers alert text. Implementations are best-effort: they never
// report failure to the caller.
type Notifier interface {
	Send(ctx context.Context, text string)
}

type Noop struct{}

func (Noop) Send(context.Context, string) {}
