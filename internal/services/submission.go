package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	goa "goa.design/goa/v3/pkg"

	"oikos/internal/domain"
	"oikos/internal/metrics"
	"oikos/internal/validation"
	apperrors "oikos/pkg/errors"
)

// Submission results recorded in form_submissions_total.
const (
	resultAccepted = "accepted"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// Dispatcher delivers a validated event to every channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.SubmissionEvent) domain.DispatchOutcome
}

// SubmitPayload is one decoded form post.
type SubmitPayload struct {
	Form   domain.FormKind
	Fields map[string]string
}

// SubmitResult is returned for an accepted submission.
type SubmitResult struct {
	Event   domain.SubmissionEvent
	Outcome domain.DispatchOutcome
	// Message is the confirmation shown to the submitter.
	Message string
}

// SubmissionService validates form posts and hands them to the dispatcher
type SubmissionService struct {
	validator  *validation.Validator
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(validator *validation.Validator, dispatcher Dispatcher, logger zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		validator:  validator,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "submission").Logger(),
	}
}

// Submit validates the payload and dispatches it. Validation problems come
// back as bad_request errors before any channel is contacted; a dispatch in
// which no channel delivered comes back as internal_error.
func (s *SubmissionService) Submit(ctx context.Context, p *SubmitPayload) (*SubmitResult, error) {
	ev, err := s.validator.Validate(p.Form, p.Fields)
	if err != nil {
		metrics.RecordSubmission(string(p.Form), resultRejected)
		if apperrors.IsValidation(err) {
			s.logger.Info().
				Str("form", string(p.Form)).
				Str("error_code", string(apperrors.CodeOf(err))).
				Err(err).
				Msg("submission rejected")
			return nil, BadRequest(err)
		}
		return nil, fmt.Errorf("validate %s submission: %w", p.Form, err)
	}

	out := s.dispatcher.Dispatch(ctx, ev)
	if !out.OverallSuccess {
		metrics.RecordSubmission(string(ev.Kind), resultFailed)
		s.logger.Error().
			Str("event_id", ev.EventID).
			Str("form", string(ev.Kind)).
			Msg("submission not delivered by any channel")
		return nil, DeliveryFailed()
	}

	metrics.RecordSubmission(string(ev.Kind), resultAccepted)
	return &SubmitResult{
		Event:   ev,
		Outcome: out,
		Message: Confirmation(ev),
	}, nil
}

// Confirmation is the plain-text success message for ev, naming where we
// will reach the submitter.
func Confirmation(ev domain.SubmissionEvent) string {
	email, phone := domain.Plain(ev.Email), domain.Plain(ev.Phone)
	if ev.IsBooking() {
		return fmt.Sprintf("Booking submitted successfully! A confirmation email has been sent to %s. Our team will contact you within 24 hours at %s.", email, phone)
	}
	return fmt.Sprintf("Thank you! We have received your request and will contact you shortly at %s or %s.", email, phone)
}

// NewSubmitEndpoint wraps Submit as a goa endpoint taking a *SubmitPayload.
func NewSubmitEndpoint(s *SubmissionService) goa.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		p, ok := req.(*SubmitPayload)
		if !ok {
			return nil, fmt.Errorf("unexpected submit payload %T", req)
		}
		return s.Submit(ctx, p)
	}
}
