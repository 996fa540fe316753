package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"oikos/internal/config"
	"oikos/internal/domain"
	"oikos/internal/util"
	apperrors "oikos/pkg/errors"
)

// SpreadsheetOption customises a SpreadsheetChannel.
type SpreadsheetOption func(*SpreadsheetChannel)

// WithHTTPClient swaps the client used for webhook calls.
func WithHTTPClient(c *http.Client) SpreadsheetOption {
	return func(s *SpreadsheetChannel) {
		if c != nil {
			s.client = c
		}
	}
}

// SpreadsheetChannel records events through the spreadsheet's webhook, the
// system of record for submissions.
type SpreadsheetChannel struct {
	url    string
	secret string
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewSpreadsheetChannel creates the spreadsheet channel. An empty webhook URL
// leaves the channel unconfigured.
func NewSpreadsheetChannel(cfg config.SpreadsheetConfig, logger zerolog.Logger, opts ...SpreadsheetOption) *SpreadsheetChannel {
	s := &SpreadsheetChannel{
		url:    cfg.WebhookURL,
		secret: cfg.WebhookSecret,
		client: &http.Client{},
		logger: logger.With().Str("component", "spreadsheet").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *SpreadsheetChannel) Name() domain.Channel { return domain.ChannelSpreadsheet }

func (s *SpreadsheetChannel) Configured() bool { return s.url != "" }

// Send posts the event record as JSON. Any 2xx answer counts as
// recorded.
func (s *SpreadsheetChannel) Send(ctx context.Context, ev domain.SubmissionEvent) domain.ChannelResult {
	if !s.Configured() {
		return domain.Unconfigured(domain.ChannelSpreadsheet)
	}

	payload, err := json.Marshal(ev.Record())
	if err != nil {
		return domain.Failed(domain.ChannelSpreadsheet, apperrors.ErrCodeInternalError, fmt.Sprintf("encode record: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return domain.Failed(domain.ChannelSpreadsheet, apperrors.ErrCodeInternalError, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if s.secret != "" {
		token, err := util.SignWebhookToken(s.secret, ev.EventID, string(ev.Kind), s.now())
		if err != nil {
			return domain.Failed(domain.ChannelSpreadsheet, apperrors.ErrCodeInternalError, fmt.Sprintf("sign request: %v", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return failure(domain.ChannelSpreadsheet, "spreadsheet webhook", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, rawBodyLimit*4))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug().
			Str("event_id", ev.EventID).
			Int("status", resp.StatusCode).
			Str("body", truncate(string(body), rawBodyLimit)).
			Msg("spreadsheet webhook rejected record")
		detail := fmt.Sprintf("spreadsheet webhook returned HTTP %d", resp.StatusCode)
		if b := truncate(string(body), rawBodyLimit); b != "" {
			detail += ": " + b
		}
		return domain.Failed(domain.ChannelSpreadsheet, apperrors.ErrCodeRemoteRejected, detail)
	}

	return domain.Succeeded(domain.ChannelSpreadsheet, fmt.Sprintf("recorded (HTTP %d)", resp.StatusCode))
}
