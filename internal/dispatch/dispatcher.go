// Package dispatch fans one submission event out to every delivery channel
// and folds the per-channel results into a single outcome.
//
// Sends are detached from the caller's cancellation: once dispatch starts, a
// client disconnect does not abort deliveries already in flight, so external
// side effects (an email sent, a row written) may exist even when the HTTP
// response never reaches the client. Each channel is bounded by its own
// timeout instead.
package dispatch

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"oikos/internal/channels"
	"oikos/internal/domain"
	"oikos/internal/metrics"
	apperrors "oikos/pkg/errors"
)

// DefaultChannelTimeout bounds a single channel send.
const DefaultChannelTimeout = 10 * time.Second

// Policy decides when a dispatch as a whole counts as successful.
type Policy struct {
	// RequireAllChannels demands that every channel delivered. When false any
	// single delivered channel is enough.
	RequireAllChannels bool
}

// Succeeded applies the policy to a set of results.
func (p Policy) Succeeded(results []domain.ChannelResult) bool {
	if len(results) == 0 {
		return false
	}
	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	if p.RequireAllChannels {
		return ok == len(results)
	}
	return ok > 0
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy sets the success policy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithChannelTimeout sets the per-channel send timeout.
func WithChannelTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxConcurrent caps how many channels send at once. Zero or less means
// every channel sends in parallel.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) {
		d.maxConcurrent = n
	}
}

// WithLogger sets the logger used for per-channel result lines.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger.With().Str("component", "dispatcher").Logger()
	}
}

// Dispatcher delivers events to a fixed set of channels. It holds no per-event
// state and is safe for concurrent use.
type Dispatcher struct {
	channels      []channels.Channel
	policy        Policy
	timeout       time.Duration
	maxConcurrent int
	logger        zerolog.Logger
}

// New creates a dispatcher over chans, ordered spreadsheet, email, sms.
func New(chans []channels.Channel, opts ...Option) *Dispatcher {
	ordered := make([]channels.Channel, 0, len(chans))
	for _, ch := range chans {
		if ch != nil {
			ordered = append(ordered, ch)
		}
	}
	slices.SortStableFunc(ordered, func(a, b channels.Channel) int {
		return a.Name().Rank() - b.Name().Rank()
	})

	d := &Dispatcher{
		channels: ordered,
		timeout:  DefaultChannelTimeout,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Channels returns the channels in dispatch order.
func (d *Dispatcher) Channels() []channels.Channel {
	return slices.Clone(d.channels)
}

// Dispatch sends ev through every channel concurrently and waits for all of
// them. The outcome holds one result per channel in dispatch order, whatever
// order they finished in. Dispatch never fails; problems are in the results.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.SubmissionEvent) domain.DispatchOutcome {
	parent := context.WithoutCancel(ctx)
	results := make([]domain.ChannelResult, len(d.channels))

	var g errgroup.Group
	if d.maxConcurrent > 0 {
		g.SetLimit(d.maxConcurrent)
	}
	for i, ch := range d.channels {
		i, ch := i, ch
		g.Go(func() error {
			results[i] = d.send(parent, ch, ev)
			return nil
		})
	}
	_ = g.Wait()

	out := domain.DispatchOutcome{
		EventID:        ev.EventID,
		Results:        results,
		OverallSuccess: d.policy.Succeeded(results),
	}

	logEvent := d.logger.Info()
	if !out.OverallSuccess {
		logEvent = d.logger.Error()
	}
	logEvent.
		Str("event_id", ev.EventID).
		Str("form", string(ev.Kind)).
		Int("delivered", out.Succeeded()).
		Int("channels", len(results)).
		Bool("overall_success", out.OverallSuccess).
		Msg("dispatch complete")

	return out
}

// send runs one channel under its own timeout. A channel that ignores its
// context is abandoned at the deadline; its late result is dropped.
func (d *Dispatcher) send(parent context.Context, ch channels.Channel, ev domain.SubmissionEvent) domain.ChannelResult {
	name := ch.Name()
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.ChannelResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().
					Str("event_id", ev.EventID).
					Str("channel", string(name)).
					Interface("panic", r).
					Msg("channel panicked")
				done <- domain.Failed(name, apperrors.ErrCodeInternalError, fmt.Sprintf("%s channel failed unexpectedly", name))
			}
		}()
		done <- ch.Send(ctx, ev)
	}()

	var (
		res domain.ChannelResult
		got bool
	)
	select {
	case res = <-done:
		got = true
	case <-ctx.Done():
		select {
		case res = <-done:
			got = true
		default:
		}
	}

	if !got || (ctx.Err() == context.DeadlineExceeded && !res.OK) {
		res = domain.Failed(name, apperrors.ErrCodeNetwork, d.timeoutDetail(res))
	}
	res.Channel = name
	res.Duration = time.Since(start)

	d.record(ev, res)
	return res
}

func (d *Dispatcher) timeoutDetail(res domain.ChannelResult) string {
	detail := fmt.Sprintf("timeout after %s", d.timeout)
	if res.Detail != "" {
		detail += ": " + res.Detail
	}
	return detail
}

func (d *Dispatcher) record(ev domain.SubmissionEvent, res domain.ChannelResult) {
	code := string(res.Code())
	metrics.RecordChannelSend(string(res.Channel), res.OK, code, res.Duration)

	logEvent := d.logger.Info()
	if !res.OK {
		logEvent = d.logger.Warn()
	}
	logEvent.
		Str("event_id", ev.EventID).
		Str("channel", string(res.Channel)).
		Bool("ok", res.OK).
		Str("error_code", code).
		Str("detail", res.Detail).
		Dur("duration", res.Duration).
		Msg("channel result")
}
