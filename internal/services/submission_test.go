package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goa "goa.design/goa/v3/pkg"

	"oikos/internal/channels"
	"oikos/internal/dispatch"
	"oikos/internal/domain"
	"oikos/internal/validation"
	apperrors "oikos/pkg/errors"
)

// stubChannel answers every send with the same result.
type stubChannel struct {
	name       domain.Channel
	configured bool
	result     func(domain.Channel) domain.ChannelResult
	sends      atomic.Int32
	last       atomic.Value
}

func (c *stubChannel) Name() domain.Channel { return c.name }

func (c *stubChannel) Configured() bool { return c.configured }

func (c *stubChannel) Send(_ context.Context, ev domain.SubmissionEvent) domain.ChannelResult {
	c.sends.Add(1)
	c.last.Store(ev)
	if c.result == nil {
		return domain.Succeeded(c.name, "ok")
	}
	return c.result(c.name)
}

func okResult(ch domain.Channel) domain.ChannelResult { return domain.Succeeded(ch, "ok") }

func rejectedResult(ch domain.Channel) domain.ChannelResult {
	return domain.Failed(ch, apperrors.ErrCodeRemoteRejected, string(ch)+" returned HTTP 500")
}

type stubSet struct {
	sheet, email, sms *stubChannel
}

func newStubs(sheet, email, sms func(domain.Channel) domain.ChannelResult) stubSet {
	return stubSet{
		sheet: &stubChannel{name: domain.ChannelSpreadsheet, configured: true, result: sheet},
		email: &stubChannel{name: domain.ChannelEmail, configured: true, result: email},
		sms:   &stubChannel{name: domain.ChannelSMS, configured: true, result: sms},
	}
}

func (s stubSet) channels() []channels.Channel {
	return []channels.Channel{s.sheet, s.email, s.sms}
}

func (s stubSet) sends() int32 {
	return s.sheet.sends.Load() + s.email.sends.Load() + s.sms.sends.Load()
}

var fixedNow = time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

func newTestValidator() *validation.Validator {
	return validation.New(
		validation.WithClock(func() time.Time { return fixedNow }),
		validation.WithIDGenerator(func(kind domain.FormKind) string { return string(kind) + "_test" }),
	)
}

func newTestSubmissionService(stubs stubSet) *SubmissionService {
	return NewSubmissionService(newTestValidator(), dispatch.New(stubs.channels()), zerolog.Nop())
}

func juanBooking() map[string]string {
	return map[string]string{
		"fullName":    "Juan Dela Cruz",
		"email":       "juan@example.com",
		"phone":       "09123456789",
		"checkinDate": "2026-03-01",
		"guests":      "4",
		"packageName": "Premium Glamping",
	}
}

func TestSubmitAccepted(t *testing.T) {
	stubs := newStubs(nil, nil, nil)
	svc := newTestSubmissionService(stubs)

	res, err := svc.Submit(context.Background(), &SubmitPayload{Form: domain.FormBooking, Fields: juanBooking()})
	require.NoError(t, err)

	assert.Equal(t, "booking_test", res.Event.EventID)
	assert.True(t, res.Outcome.OverallSuccess)
	assert.Contains(t, res.Message, "juan@example.com")
	assert.Contains(t, res.Message, "09123456789")
	assert.EqualValues(t, 3, stubs.sends())

	got := stubs.email.last.Load().(domain.SubmissionEvent)
	assert.Equal(t, res.Event, got)
}

func TestSubmitPartialChannelFailure(t *testing.T) {
	stubs := newStubs(rejectedResult, okResult, domain.Unconfigured)
	svc := newTestSubmissionService(stubs)

	res, err := svc.Submit(context.Background(), &SubmitPayload{Form: domain.FormBooking, Fields: juanBooking()})
	require.NoError(t, err)

	require.Len(t, res.Outcome.Results, 3)
	sheet, _ := res.Outcome.Result(domain.ChannelSpreadsheet)
	assert.False(t, sheet.OK)
	assert.Equal(t, apperrors.ErrCodeRemoteRejected, sheet.Code())
	email, _ := res.Outcome.Result(domain.ChannelEmail)
	assert.True(t, email.OK)
	assert.True(t, res.Outcome.OverallSuccess)
}

func TestSubmitValidationSkipsDispatch(t *testing.T) {
	stubs := newStubs(nil, nil, nil)
	svc := newTestSubmissionService(stubs)

	_, err := svc.Submit(context.Background(), &SubmitPayload{
		Form: domain.FormInquiry,
		Fields: map[string]string{
			"name":       "Maria Santos",
			"email":      "maria@example.com",
			"interested": "Farm tours",
		},
	})

	var se *goa.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrNameBadRequest, se.Name)
	assert.Equal(t, "Please fill all required fields: phone", se.Message)
	require.NotNil(t, se.Field)
	assert.Equal(t, "phone", *se.Field)
	assert.Zero(t, stubs.sends())
}

func TestSubmitTotalFailure(t *testing.T) {
	stubs := newStubs(rejectedResult, rejectedResult, domain.Unconfigured)
	svc := newTestSubmissionService(stubs)

	_, err := svc.Submit(context.Background(), &SubmitPayload{Form: domain.FormBooking, Fields: juanBooking()})

	var se *goa.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrNameInternal, se.Name)
	assert.True(t, se.Fault)
	assert.Equal(t, MsgDeliveryFailed, se.Message)
}

func TestSubmitEndpoint(t *testing.T) {
	svc := newTestSubmissionService(newStubs(nil, nil, nil))
	endpoint := NewSubmitEndpoint(svc)

	res, err := endpoint(context.Background(), &SubmitPayload{Form: domain.FormBooking, Fields: juanBooking()})
	require.NoError(t, err)
	assert.IsType(t, &SubmitResult{}, res)

	_, err = endpoint(context.Background(), "not a payload")
	assert.Error(t, err)
}

func TestConfirmation(t *testing.T) {
	booking := domain.SubmissionEvent{Kind: domain.FormBooking, Email: "juan@example.com", Phone: "09123456789"}
	assert.Equal(t,
		"Booking submitted successfully! A confirmation email has been sent to juan@example.com. Our team will contact you within 24 hours at 09123456789.",
		Confirmation(booking))

	inquiry := domain.SubmissionEvent{Kind: domain.FormInquiry, Email: "maria@example.com", Phone: "+639171112222"}
	assert.Equal(t,
		"Thank you! We have received your request and will contact you shortly at maria@example.com or +639171112222.",
		Confirmation(inquiry))

	escaped := domain.SubmissionEvent{Kind: domain.FormInquiry, Email: "o&#39;brien@example.com", Phone: "+63 &amp; 917"}
	assert.Equal(t,
		"Thank you! We have received your request and will contact you shortly at o'brien@example.com or +63 & 917.",
		Confirmation(escaped))
}

func TestStatusOf(t *testing.T) {
	status, msg := StatusOf(BadRequest(apperrors.Invalid(apperrors.ErrCodeInvalidEmail, "email", "Invalid email address")))
	assert.Equal(t, 400, status)
	assert.Equal(t, "Invalid email address", msg)

	status, msg = StatusOf(DeliveryFailed())
	assert.Equal(t, 500, status)
	assert.Equal(t, MsgDeliveryFailed, msg)

	status, msg = StatusOf(assert.AnError)
	assert.Equal(t, 500, status)
	assert.Equal(t, MsgServerError, msg)
}

func TestHealthCheck(t *testing.T) {
	stubs := newStubs(nil, nil, nil)
	stubs.sms.configured = false

	res, err := NewHealthService("Oikos Forms API", "1.0.0", stubs.channels()).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, map[string]bool{"spreadsheet": true, "email": true, "sms": false}, res.Channels)

	stubs.sheet.configured = false
	stubs.email.configured = false
	res, err = NewHealthService("Oikos Forms API", "1.0.0", stubs.channels()).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", res.Status)
}
