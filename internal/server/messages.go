package server

import (
	"encoding/json"

	"auralense/contrast"
)

// Message types exchanged over the websocket and used as HTTP response
// envelopes.
const (
	MsgGetIssues     = "GET_CONTRAST_ISSUES"
	MsgIssuesResult  = "CONTRAST_ISSUES_RESULT"
	MsgFixIssues     = "FIX_CONTRAST_ISSUES"
	MsgFixResult     = "CONTRAST_FIX_RESULT"
	MsgCloseSession  = "CLOSE_SESSION"
	MsgSessionClosed = "SESSION_CLOSED"
	MsgError         = "ERROR"
)

type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type reply struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload"`
}

type scanRequest struct {
	HTML    string            `json:"html,omitempty"`
	URL     string            `json:"url,omitempty"`
	Live    *bool             `json:"live,omitempty"`
	Session string            `json:"session,omitempty"`
	Refresh bool              `json:"refresh,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type scanResult struct {
	Issues  []contrast.Issue `json:"issues"`
	Session string           `json:"session,omitempty"`
	URL     string           `json:"url,omitempty"`
	Mode    string           `json:"mode,omitempty"`
	HTML    string           `json:"html,omitempty"`
}

type fixRequest struct {
	IssuesToFix []contrast.Issue `json:"issuesToFix"`
	HTML        string           `json:"html,omitempty"`
	Session     string           `json:"session,omitempty"`
}

type fixResult struct {
	FixedCount int    `json:"fixedCount"`
	Applied    int    `json:"applied,omitempty"`
	HTML       string `json:"html,omitempty"`
	Error      string `json:"error,omitempty"`
}

type closeRequest struct {
	Session string `json:"session"`
	Restore bool   `json:"restore,omitempty"`
}

type closeResult struct {
	Session  string `json:"session"`
	Restored int    `json:"restored"`
	HTML     string `json:"html,omitempty"`
}

type errorResult struct {
	Error string `json:"error"`
}
