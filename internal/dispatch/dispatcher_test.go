package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oikos/internal/channels"
	"oikos/internal/domain"
	apperrors "oikos/pkg/errors"
)

type fakeChannel struct {
	name   domain.Channel
	delay  time.Duration
	result func(name domain.Channel) domain.ChannelResult
	// ignoreCtx makes the fake sleep through cancellation.
	ignoreCtx bool
	panics    bool
	gauge     *inflight

	mu   sync.Mutex
	seen []domain.SubmissionEvent
}

func (f *fakeChannel) Name() domain.Channel { return f.name }

func (f *fakeChannel) Configured() bool { return true }

func (f *fakeChannel) Send(ctx context.Context, ev domain.SubmissionEvent) domain.ChannelResult {
	f.mu.Lock()
	f.seen = append(f.seen, ev)
	f.mu.Unlock()

	if f.gauge != nil {
		f.gauge.enter()
		defer f.gauge.leave()
	}

	if f.panics {
		panic("boom")
	}

	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return domain.Failed(f.name, apperrors.ErrCodeNetwork, ctx.Err().Error())
			}
		}
	}

	if f.result == nil {
		return domain.Succeeded(f.name, "ok")
	}
	return f.result(f.name)
}

// inflight records the peak number of concurrent sends.
type inflight struct {
	mu       sync.Mutex
	cur, max int
}

func (g *inflight) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cur++
	g.max = max(g.max, g.cur)
}

func (g *inflight) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cur--
}

func (g *inflight) peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

func ok(name domain.Channel) domain.ChannelResult { return domain.Succeeded(name, "ok") }

func rejected(name domain.Channel) domain.ChannelResult {
	return domain.Failed(name, apperrors.ErrCodeRemoteRejected, "HTTP 500")
}

func testEvent() domain.SubmissionEvent {
	return domain.SubmissionEvent{
		Kind:        domain.FormBooking,
		EventID:     "booking_test",
		ContactName: "Juan Dela Cruz",
		Email:       "juan@example.com",
		Phone:       "09123456789",
		Booking:     domain.BookingDetails{CheckinDate: "2026-03-01", GuestCount: 4, PackageName: "Premium Glamping"},
	}
}

func names(out domain.DispatchOutcome) []domain.Channel {
	var ns []domain.Channel
	for _, r := range out.Results {
		ns = append(ns, r.Channel)
	}
	return ns
}

func TestDispatchDeterministicOrder(t *testing.T) {
	sms := &fakeChannel{name: domain.ChannelSMS}
	email := &fakeChannel{name: domain.ChannelEmail, delay: 20 * time.Millisecond}
	sheet := &fakeChannel{name: domain.ChannelSpreadsheet, delay: 40 * time.Millisecond}

	d := New([]channels.Channel{sms, email, sheet})
	out := d.Dispatch(context.Background(), testEvent())

	assert.Equal(t, []domain.Channel{domain.ChannelSpreadsheet, domain.ChannelEmail, domain.ChannelSMS}, names(out))
	assert.True(t, out.OverallSuccess)
	assert.Equal(t, "booking_test", out.EventID)
	for _, r := range out.Results {
		assert.Positive(t, r.Duration)
	}
}

func TestDispatchSameEventToEveryChannel(t *testing.T) {
	chans := []*fakeChannel{
		{name: domain.ChannelSpreadsheet},
		{name: domain.ChannelEmail},
		{name: domain.ChannelSMS},
	}
	d := New([]channels.Channel{chans[0], chans[1], chans[2]})
	d.Dispatch(context.Background(), testEvent())

	for _, ch := range chans {
		require.Len(t, ch.seen, 1)
		assert.Equal(t, testEvent(), ch.seen[0])
	}
}

func TestDispatchLenientPolicy(t *testing.T) {
	tests := []struct {
		name    string
		results [3]func(domain.Channel) domain.ChannelResult
		want    bool
	}{
		{"all ok", [3]func(domain.Channel) domain.ChannelResult{ok, ok, ok}, true},
		{"only spreadsheet", [3]func(domain.Channel) domain.ChannelResult{ok, rejected, rejected}, true},
		{"only email", [3]func(domain.Channel) domain.ChannelResult{rejected, ok, domain.Unconfigured}, true},
		{"only sms", [3]func(domain.Channel) domain.ChannelResult{domain.Unconfigured, domain.Unconfigured, ok}, true},
		{"all failed", [3]func(domain.Channel) domain.ChannelResult{rejected, rejected, rejected}, false},
		{"all unconfigured", [3]func(domain.Channel) domain.ChannelResult{domain.Unconfigured, domain.Unconfigured, domain.Unconfigured}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New([]channels.Channel{
				&fakeChannel{name: domain.ChannelSpreadsheet, result: tt.results[0]},
				&fakeChannel{name: domain.ChannelEmail, result: tt.results[1]},
				&fakeChannel{name: domain.ChannelSMS, result: tt.results[2]},
			})
			out := d.Dispatch(context.Background(), testEvent())
			assert.Len(t, out.Results, 3)
			assert.Equal(t, tt.want, out.OverallSuccess)
		})
	}
}

func TestDispatchStrictPolicy(t *testing.T) {
	chans := []channels.Channel{
		&fakeChannel{name: domain.ChannelSpreadsheet},
		&fakeChannel{name: domain.ChannelEmail},
		&fakeChannel{name: domain.ChannelSMS, result: domain.Unconfigured},
	}

	strict := New(chans, WithPolicy(Policy{RequireAllChannels: true}))
	assert.False(t, strict.Dispatch(context.Background(), testEvent()).OverallSuccess)

	lenient := New(chans)
	assert.True(t, lenient.Dispatch(context.Background(), testEvent()).OverallSuccess)

	allOK := New([]channels.Channel{
		&fakeChannel{name: domain.ChannelSpreadsheet},
		&fakeChannel{name: domain.ChannelEmail},
		&fakeChannel{name: domain.ChannelSMS},
	}, WithPolicy(Policy{RequireAllChannels: true}))
	assert.True(t, allOK.Dispatch(context.Background(), testEvent()).OverallSuccess)
}

func TestDispatchNoChannels(t *testing.T) {
	out := New(nil).Dispatch(context.Background(), testEvent())
	assert.Empty(t, out.Results)
	assert.False(t, out.OverallSuccess)
}

func TestDispatchChannelTimeout(t *testing.T) {
	d := New([]channels.Channel{
		&fakeChannel{name: domain.ChannelSpreadsheet, delay: time.Second},
		&fakeChannel{name: domain.ChannelEmail},
		&fakeChannel{name: domain.ChannelSMS, delay: 10 * time.Millisecond},
	}, WithChannelTimeout(50*time.Millisecond))

	start := time.Now()
	out := d.Dispatch(context.Background(), testEvent())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	sheet, _ := out.Result(domain.ChannelSpreadsheet)
	assert.False(t, sheet.OK)
	assert.Equal(t, apperrors.ErrCodeNetwork, sheet.Code())
	assert.Contains(t, sheet.Detail, "timeout after 50ms")

	email, _ := out.Result(domain.ChannelEmail)
	assert.True(t, email.OK)
	sms, _ := out.Result(domain.ChannelSMS)
	assert.True(t, sms.OK)
	assert.True(t, out.OverallSuccess)
}

func TestDispatchAbandonsChannelIgnoringContext(t *testing.T) {
	d := New([]channels.Channel{
		&fakeChannel{name: domain.ChannelEmail, delay: time.Second, ignoreCtx: true},
		&fakeChannel{name: domain.ChannelSMS},
	}, WithChannelTimeout(30*time.Millisecond))

	start := time.Now()
	out := d.Dispatch(context.Background(), testEvent())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	email, _ := out.Result(domain.ChannelEmail)
	assert.False(t, email.OK)
	assert.Equal(t, apperrors.ErrCodeNetwork, email.Code())
	assert.Equal(t, domain.ChannelEmail, email.Channel)
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := New([]channels.Channel{
		&fakeChannel{name: domain.ChannelSpreadsheet},
		&fakeChannel{name: domain.ChannelEmail, panics: true},
		&fakeChannel{name: domain.ChannelSMS},
	})

	out := d.Dispatch(context.Background(), testEvent())

	require.Len(t, out.Results, 3)
	email, _ := out.Result(domain.ChannelEmail)
	assert.False(t, email.OK)
	assert.Equal(t, apperrors.ErrCodeInternalError, email.Code())
	assert.True(t, out.OverallSuccess)
}

func TestDispatchIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New([]channels.Channel{
		&fakeChannel{name: domain.ChannelSpreadsheet, delay: 10 * time.Millisecond},
	})
	out := d.Dispatch(ctx, testEvent())

	sheet, _ := out.Result(domain.ChannelSpreadsheet)
	assert.True(t, sheet.OK, "in-flight sends are not aborted by a client disconnect")
}

func TestChannelsAreSorted(t *testing.T) {
	d := New([]channels.Channel{
		&fakeChannel{name: domain.ChannelSMS},
		nil,
		&fakeChannel{name: domain.ChannelSpreadsheet},
	})

	got := d.Channels()
	require.Len(t, got, 2)
	assert.Equal(t, domain.ChannelSpreadsheet, got[0].Name())
	assert.Equal(t, domain.ChannelSMS, got[1].Name())
}

func TestDispatchMaxConcurrent(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"serial", 1, 1},
		{"pairs", 2, 2},
		{"unlimited", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gauge := &inflight{}
			chans := []channels.Channel{
				&fakeChannel{name: domain.ChannelSMS, delay: 30 * time.Millisecond, gauge: gauge},
				&fakeChannel{name: domain.ChannelEmail, delay: 30 * time.Millisecond, gauge: gauge},
				&fakeChannel{name: domain.ChannelSpreadsheet, delay: 30 * time.Millisecond, gauge: gauge},
			}

			d := New(chans, WithMaxConcurrent(tt.limit))
			out := d.Dispatch(context.Background(), testEvent())

			assert.Equal(t, tt.want, gauge.peak())
			assert.True(t, out.OverallSuccess)
			assert.Equal(t, []domain.Channel{domain.ChannelSpreadsheet, domain.ChannelEmail, domain.ChannelSMS}, names(out))
		})
	}
}
