package fetch

import "fmt"

// Reason classifies why a fetch was rejected.
type Reason string

const (
	ReasonNetwork    Reason = "network"
	ReasonHTTPStatus Reason = "http_status"
	ReasonTooLarge   Reason = "too_large"
	ReasonRobots     Reason = "robots"
	ReasonNotImage   Reason = "not_image"
	ReasonFormat     Reason = "format"
	ReasonTooSmall   Reason = "too_small"
)

// Error is a per-URL fetch failure. It is expected during a run and only
// ever affects that row; the pipeline counts it and moves on.
type Error struct {
	URL    string
	Reason Reason
	Status int // HTTP status code when Reason is ReasonHTTPStatus
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason == ReasonHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
