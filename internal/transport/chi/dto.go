package chi

import "time"

// CompareItemsRequest is the POST /api/compare-items body. Pointers tell
// a missing field apart from an empty one, and a null element apart from "".
type CompareItemsRequest struct {
	Items1              *[]*string `json:"items1"`
	Items2              *[]*string `json:"items2"`
	SimilarityThreshold *float64   `json:"similarityThreshold"`
}

// Match is one reported pair.
type Match struct {
	Item1      string  `json:"item1"`
	Item2      string  `json:"item2"`
	Similarity float64 `json:"similarity"`
}

// CompareItemsResponse is the success body. Matches is never null.
type CompareItemsResponse struct {
	Matches []Match `json:"matches"`
}

// ErrorCode identifies an error class to API clients.
type ErrorCode string

// Error codes outside the comparison failure kinds.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed ErrorCode = "method_not_allowed"
	ErrorCodePayloadTooLarge  ErrorCode = "payload_too_large"
	ErrorCodeInternal         ErrorCode = "internal"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// UsageResponse is the GET /api/usage body.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`     // 0 = unlimited
	TokensRemaining int64     `json:"tokens_remaining"` // -1 = unlimited
	Exhausted       bool      `json:"exhausted"`
}
