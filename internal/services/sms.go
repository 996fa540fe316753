package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"oikos/internal/config"
	apperrors "oikos/pkg/errors"
)

// SMSService sends text messages through the Twilio REST API
type SMSService struct {
	cfg    config.SMSConfig
	client *http.Client
}

// NewSMSService creates a new SMS service. A nil client uses a default one;
// request deadlines come from the caller's context.
func NewSMSService(cfg config.SMSConfig, client *http.Client) *SMSService {
	if client == nil {
		client = &http.Client{}
	}
	return &SMSService{cfg: cfg, client: client}
}

// IsEnabled returns whether Twilio credentials are configured
func (s *SMSService) IsEnabled() bool {
	return s.cfg.TwilioSID != "" && s.cfg.TwilioAuth != "" && s.cfg.TwilioFrom != ""
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send sends body to the E.164 number `to` and returns the message SID.
// Non-2xx answers and answers without a SID are RemoteRejected; transport
// failures are NetworkError.
func (s *SMSService) Send(ctx context.Context, to, body string) (string, error) {
	if !s.IsEnabled() {
		return "", apperrors.New(apperrors.ErrCodeChannelUnconfigured, "Twilio not properly configured")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.APIBaseURL, "/"), url.PathEscape(s.cfg.TwilioSID))

	form := url.Values{
		"From": {s.cfg.TwilioFrom},
		"To":   {to},
		"Body": {body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to create request", err)
	}
	req.SetBasicAuth(s.cfg.TwilioSID, s.cfg.TwilioAuth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeNetwork, "failed to send SMS request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeNetwork, "failed to read Twilio response", err)
	}

	var parsed twilioResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := parsed.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", apperrors.New(apperrors.ErrCodeRemoteRejected,
			fmt.Sprintf("Twilio API error (status %d): %s", resp.StatusCode, msg))
	}

	if decodeErr != nil || parsed.SID == "" {
		return "", apperrors.New(apperrors.ErrCodeRemoteRejected, "Twilio response did not include a message sid")
	}

	return parsed.SID, nil
}
