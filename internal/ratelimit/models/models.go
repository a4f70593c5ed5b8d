package models

import (
	"strings"
	"time"
)

// Class groups endpoints that share a request budget.
type Class string

const (
	// ClassAuth covers the wallet sign-in endpoints.
	ClassAuth Class = "auth"
	// ClassAPI covers the ledger and view endpoints.
	ClassAPI Class = "api"
)

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result describes one rate limit decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; zero when allowed
	Degraded   bool
}

// Key builds the bucket key for a class and client identifier.
func Key(class Class, identifier string) string {
	return string(class) + ":" + SanitizeKeySegment(identifier)
}

// SanitizeKeySegment escapes ':' so an identifier cannot spill into a neighbouring
// key segment.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
