package domain

import (
	"time"

	apperrors "oikos/pkg/errors"
)

// Channel names one external delivery mechanism.
type Channel string

const (
	ChannelSpreadsheet Channel = "spreadsheet"
	ChannelEmail       Channel = "email"
	ChannelSMS         Channel = "sms"
)

// Rank returns the channel's position in dispatch results. Unknown channels
// sort last.
func (c Channel) Rank() int {
	switch c {
	case ChannelSpreadsheet:
		return 0
	case ChannelEmail:
		return 1
	case ChannelSMS:
		return 2
	default:
		return 3
	}
}

// ErrorInfo describes why a channel did not fully deliver.
type ErrorInfo struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// ChannelResult is the outcome of one channel for one event.
type ChannelResult struct {
	Channel  Channel       `json:"channel"`
	OK       bool          `json:"ok"`
	Detail   string        `json:"detail"`
	Error    *ErrorInfo    `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded builds a successful result.
func Succeeded(ch Channel, detail string) ChannelResult {
	return ChannelResult{Channel: ch, OK: true, Detail: detail}
}

// Failed builds a failed result carrying code and message.
func Failed(ch Channel, code apperrors.ErrorCode, detail string) ChannelResult {
	return ChannelResult{
		Channel: ch,
		Detail:  detail,
		Error:   &ErrorInfo{Code: code, Message: detail},
	}
}

// Unconfigured builds the result recorded for a channel that was skipped
// because its credentials are absent.
func Unconfigured(ch Channel) ChannelResult {
	return Failed(ch, apperrors.ErrCodeChannelUnconfigured, string(ch)+" channel is not configured")
}

// Code returns the error code of the result, or "" when there is none.
func (r ChannelResult) Code() apperrors.ErrorCode {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}

// DispatchOutcome aggregates the channel results for one event, ordered
// spreadsheet, email, sms.
type DispatchOutcome struct {
	EventID        string          `json:"eventId"`
	Results        []ChannelResult `json:"results"`
	OverallSuccess bool            `json:"overallSuccess"`
}

// Result returns the result recorded for ch.
func (o DispatchOutcome) Result(ch Channel) (ChannelResult, bool) {
	for _, r := range o.Results {
		if r.Channel == ch {
			return r, true
		}
	}
	return ChannelResult{}, false
}

// Succeeded counts the channels that delivered.
func (o DispatchOutcome) Succeeded() int {
	n := 0
	for _, r := range o.Results {
		if r.OK {
			n++
		}
	}
	return n
}
