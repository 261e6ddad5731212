package server

import "time"

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// CreateReportRequest starts an asynchronous report run.
type CreateReportRequest struct {
	Topic      string         `json:"topic"`
	ReportType string         `json:"report_type,omitempty"`
	Tone       string         `json:"tone,omitempty"`
	Length     string         `json:"length,omitempty"`
	Benchmark  bool           `json:"benchmark,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// CreateReportResponse acknowledges an accepted run.
type CreateReportResponse struct {
	RunID string `json:"run_id"`
}

// RunStatusResponse is the pollable view of a run.
type RunStatusResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	ReportID  string    `json:"report_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReportListItem is one row of the reports listing.
type ReportListItem struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	ReportType string    `json:"report_type"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}
