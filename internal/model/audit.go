package model

import (
	"time"
)

// AuditLog is one control-API request as seen by the audit middleware.
type AuditLog struct {
	ID        string `json:"id"`         // request id (UUID)
	AccountID string `json:"account_id"` // operator account
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody   string `json:"request_body"` // redacted
	RequestHeader string `json:"request_header"`

	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Free-form context: coin, nonce, exchange outcome...
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
