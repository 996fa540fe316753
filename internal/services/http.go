package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	goahttp "goa.design/goa/v3/http"
	goa "goa.design/goa/v3/pkg"

	"oikos/internal/domain"
	"oikos/internal/validation"
	apperrors "oikos/pkg/errors"
)

// maxBodyBytes bounds a form post body.
const maxBodyBytes = 64 << 10

// Form routes served by the website.
const (
	BookingPath    = "/api/send-booking"
	GetStartedPath = "/api/send-getstarted"
	HealthPath     = "/health"
)

// submitMethods are routed to the form handler so that it, rather than the
// muxer, answers disallowed methods.
var submitMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// FormResponse is the JSON body of every form endpoint response.
type FormResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// Server exposes the submission and health endpoints over HTTP.
type Server struct {
	submit goa.Endpoint
	health goa.Endpoint
	logger zerolog.Logger
}

// NewServer creates the HTTP server for the given endpoints.
func NewServer(submit, health goa.Endpoint, logger zerolog.Logger) *Server {
	return &Server{
		submit: submit,
		health: health,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// Mount registers the routes on mux.
func (s *Server) Mount(mux goahttp.Muxer) {
	booking := s.handleSubmit(domain.FormBooking)
	inquiry := s.handleSubmit(domain.FormInquiry)
	for _, method := range submitMethods {
		mux.Handle(method, BookingPath, booking)
		mux.Handle(method, GetStartedPath, inquiry)
	}
	mux.Handle(http.MethodGet, HealthPath, s.handleHealth)
}

func (s *Server) handleSubmit(form domain.FormKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := jsonContext(r.Context())

		switch r.Method {
		case http.MethodPost:
		case http.MethodOptions:
			s.encode(ctx, w, http.StatusOK, &FormResponse{Success: true})
			return
		default:
			w.Header().Set("Allow", "POST, OPTIONS")
			s.encode(ctx, w, http.StatusMethodNotAllowed, &FormResponse{Message: MsgMethodNotAllowed})
			return
		}

		fields, err := decodeFields(r)
		if err != nil {
			s.encodeError(ctx, w, form, err)
			return
		}

		res, err := s.submit(ctx, &SubmitPayload{Form: form, Fields: fields})
		if err != nil {
			s.encodeError(ctx, w, form, err)
			return
		}

		result := res.(*SubmitResult)
		s.encode(ctx, w, http.StatusOK, &FormResponse{
			Success: true,
			Message: result.Message,
			Data:    result.Event.Record(),
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := jsonContext(r.Context())
	res, err := s.health(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		s.encode(ctx, w, http.StatusInternalServerError, &FormResponse{Message: MsgServerError})
		return
	}
	s.encode(ctx, w, http.StatusOK, res)
}

func (s *Server) encodeError(ctx context.Context, w http.ResponseWriter, form domain.FormKind, err error) {
	status, msg := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().
			Str("form", string(form)).
			Err(err).
			Msg("submission failed")
	}
	s.encode(ctx, w, status, &FormResponse{Message: msg})
}

func (s *Server) encode(ctx context.Context, w http.ResponseWriter, status int, v any) {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	if err := enc.Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// jsonContext pins response encoding to JSON whatever the client accepts.
func jsonContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, goahttp.AcceptTypeKey, "application/json")
}

// decodeFields reads a JSON object of scalar fields. Numbers and booleans are
// kept in their JSON spelling, null counts as absent and the server-assigned
// keys are dropped.
func decodeFields(r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	// Pages posting without a preflight label their JSON as text/plain.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		r.Header.Set("Content-Type", "application/json")
	}

	var raw map[string]any
	if err := goahttp.RequestDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, BadRequest(apperrors.Wrap(apperrors.ErrCodeInvalidField, "Invalid request body", err))
	}

	fields := make(map[string]string, len(raw))
	for key, val := range raw {
		switch v := val.(type) {
		case nil:
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			fields[key] = v.String()
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			return nil, BadRequest(apperrors.Invalid(apperrors.ErrCodeInvalidField, key,
				fmt.Sprintf("Field %s must be a single value", key)))
		}
	}

	for _, key := range validation.ReservedKeys {
		delete(fields, key)
	}
	return fields, nil
}
