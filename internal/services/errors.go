package services

import (
	"errors"
	"net/http"

	goa "goa.design/goa/v3/pkg"

	apperrors "oikos/pkg/errors"
)

// Error names carried by *goa.ServiceError values returned from services.
const (
	ErrNameBadRequest = "bad_request"
	ErrNameInternal   = "internal_error"
)

// Messages shown to submitters when something goes wrong on our side. Details
// stay in the server logs.
const (
	MsgDeliveryFailed   = "We could not process your submission right now. Please try again later."
	MsgServerError      = "Server error. Please try again later."
	MsgMethodNotAllowed = "Method not allowed"
)

// BadRequest converts a validation error into a bad_request service error. The
// message is the submitter-facing validation text.
func BadRequest(err error) *goa.ServiceError {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	se := goa.NewServiceError(errors.New(msg), ErrNameBadRequest, false, false, false)
	if appErr != nil && appErr.Field != "" {
		field := appErr.Field
		se.Field = &field
	}
	return se
}

// DeliveryFailed is returned when no channel accepted a submission.
func DeliveryFailed() *goa.ServiceError {
	return goa.NewServiceError(errors.New(MsgDeliveryFailed), ErrNameInternal, false, true, true)
}

// StatusOf maps a service error to its HTTP status and the message that is
// safe to show the caller.
func StatusOf(err error) (int, string) {
	var se *goa.ServiceError
	if errors.As(err, &se) {
		switch se.Name {
		case ErrNameBadRequest:
			return http.StatusBadRequest, se.Message
		case ErrNameInternal:
			return http.StatusInternalServerError, se.Message
		}
	}
	return http.StatusInternalServerError, MsgServerError
}
