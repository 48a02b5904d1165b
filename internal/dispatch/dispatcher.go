// Package dispatch delivers executed retention flows to their channel.
// Delivery is fire-and-forget from the scheduler's point of view.
package dispatch

import (
	"context"
	"fmt"

	"fly2any-growth/internal/domain"
)

// Dispatcher sends a flow over one concrete channel.
type Dispatcher interface {
	SendEmail(ctx context.Context, f domain.RetentionFlow, email string) error
	SendPush(ctx context.Context, f domain.RetentionFlow) error
	SendInApp(ctx context.Context, f domain.RetentionFlow) error
	RecordAlert(ctx context.Context, f domain.RetentionFlow) error
}

// Route calls the Dispatcher method matching f.Channel.
// email is only used by the EMAIL channel.
func Route(ctx context.Context, d Dispatcher, f domain.RetentionFlow, email string) error {
	switch f.Channel {
	case domain.ChannelEmail:
		return d.SendEmail(ctx, f, email)
	case domain.ChannelPush:
		return d.SendPush(ctx, f)
	case domain.ChannelInApp:
		return d.SendInApp(ctx, f)
	case domain.ChannelAlert:
		return d.RecordAlert(ctx, f)
	default:
		return fmt.Errorf("unknown channel %q", f.Channel)
	}
}

// Multi fans out to several dispatchers. All are attempted; the first error is returned.
type Multi []Dispatcher

func (m Multi) each(send func(d Dispatcher) error) error {
	var first error
	for _, d := range m {
		if err := send(d); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) SendEmail(ctx context.Context, f domain.RetentionFlow, email string) error {
	return m.each(func(d Dispatcher) error { return d.SendEmail(ctx, f, email) })
}

func (m Multi) SendPush(ctx context.Context, f domain.RetentionFlow) error {
	return m.each(func(d Dispatcher) error { return d.SendPush(ctx, f) })
}

func (m Multi) SendInApp(ctx context.Context, f domain.RetentionFlow) error {
	return m.each(func(d Dispatcher) error { return d.SendInApp(ctx, f) })
}

func (m Multi) RecordAlert(ctx context.Context, f domain.RetentionFlow) error {
	return m.each(func(d Dispatcher) error { return d.RecordAlert(ctx, f) })
}

var _ Dispatcher = Multi(nil)
