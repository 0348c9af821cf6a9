package dto

import (
	"time"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ListResponse wraps a page of items
type ListResponse struct {
	Items  any `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// WebhookAck is returned to the payment gateway after a webhook is accepted
type WebhookAck struct {
	Received bool `json:"received"`
}

// HealthResponse represents the health check result
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}
