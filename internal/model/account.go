package model

// RateLimitConfig is a token bucket for one account.
type RateLimitConfig struct {
	QPS   float64 `json:"qps"`
	Burst int     `json:"burst"`
}

// Account is an operator of the control API.
type Account struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	APIKey   string          `json:"-"`
	ReadOnly bool            `json:"read_only"`
	Rate     RateLimitConfig `json:"rate_limit"`
}
