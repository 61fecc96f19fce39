package domain

import "time"

// RequestType distinguishes why a resolution attempt was opened.
type RequestType string

const (
	RequestTypeInitial      RequestType = "initial"
	RequestTypeDispute      RequestType = "dispute"
	RequestTypeConfirmation RequestType = "confirmation"
)

// RequestStatus is the lifecycle state of an OracleRequest. Status only moves
// forward; the single exception is proposed -> disputed on challenge.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusProposed   RequestStatus = "proposed"
	RequestStatusChallenged RequestStatus = "challenged"
	RequestStatusDisputed   RequestStatus = "disputed"
	RequestStatusResolved   RequestStatus = "resolved"
	RequestStatusFinalized  RequestStatus = "finalized"
	RequestStatusFailed     RequestStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusFinalized || s == RequestStatusFailed
}

// OracleRequest is one resolution attempt for a market. Requests are
// append-only: they are created by propose, mutated by challenge and
// finalize, and never deleted.
type OracleRequest struct {
	ID                    string
	MarketID              string
	RequestType           RequestType
	ProposerID            string
	ProposedOutcome       string
	ConfidenceScore       float64 // 0-1
	EvidenceSummary       string
	EvidenceURLs          []string
	Evidence              map[string]any
	BondAmount            float64
	BondCurrency          string
	ChallengeWindowEndsAt *time.Time // set only when status becomes proposed
	Status                RequestStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// WindowOpen reports whether the challenge window is still running at now.
func (r OracleRequest) WindowOpen(now time.Time) bool {
	return r.ChallengeWindowEndsAt != nil && now.Before(*r.ChallengeWindowEndsAt)
}

// DisputeStatus is the lifecycle state of an OracleDispute.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

// DisputeVerdict records how an adjudicator ruled on a dispute.
type DisputeVerdict string

const (
	VerdictUpheld     DisputeVerdict = "upheld"     // original proposal stands
	VerdictOverturned DisputeVerdict = "overturned" // challenger's outcome wins
)

// OracleDispute is a challenge against a proposed outcome. The challenger
// locks a bond equal to the request's bond (matching-stake rule). At most one
// open dispute may exist per request.
type OracleDispute struct {
	ID              string
	RequestID       string
	DisputerID      string
	BondAmount      float64
	Reason          string
	ExpectedOutcome string
	Status          DisputeStatus
	Verdict         DisputeVerdict
	ResolvedBy      string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// Assertion is an immutable log entry recorded by the optimistic-assertion
// strategy. Its resolution guarantee comes from the challenge window passing
// unchallenged, which the state machine enforces; the assertion itself is
// just the audit record of who staked what on which outcome.
type Assertion struct {
	ID         string
	MarketID   string
	AsserterID string
	Outcome    string
	BondAmount float64
	AssertedAt time.Time
}
