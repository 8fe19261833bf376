package models

import "time"

// Reason classifies why a verification failed.
type Reason string

// Verification failure reasons.
const (
	ReasonNone             Reason = ""
	ReasonNetworkError     Reason = "network-error"
	ReasonDead             Reason = "dead"
	ReasonBlockedByPolicy  Reason = "blocked-by-policy"
	ReasonWrongContentType Reason = "wrong-content-type"
	ReasonOffTopic         Reason = "off-topic"
)

// VerificationResult is the outcome of a live check of one candidate URL.
type VerificationResult struct {
	Price        *float64
	Acres        *float64
	PricePerAcre *float64
	URL          string
	FinalURL     string
	CanonicalURL string
	Title        string
	ContentType  string
	Error        string
	Reason       Reason
	Status       int
	Attempts     int
	Duration     time.Duration
	OK           bool
}
