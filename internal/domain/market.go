package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive             MarketStatus = "active"
	MarketStatusClosed             MarketStatus = "closed"
	MarketStatusAwaitingResolution MarketStatus = "awaiting_resolution"
	MarketStatusResolved           MarketStatus = "resolved"
	MarketStatusCancelled          MarketStatus = "cancelled"
)

// StrategyType identifies which resolution strategy a market is configured
// to use. The set is closed; unknown values are rejected at propose time.
type StrategyType string

const (
	StrategyAI          StrategyType = "ai"
	StrategyManual      StrategyType = "manual"
	StrategyAPI         StrategyType = "api"
	StrategyCentralized StrategyType = "centralized"
	StrategyAssertion   StrategyType = "assertion"
)

// Market is a prediction market whose outcome this subsystem decides. The
// surrounding application owns the record; the resolution core only reads
// its configuration and writes status, winning outcome and resolution time.
type Market struct {
	ID              string
	Question        string
	Category        string
	StrategyType    StrategyType
	Status          MarketStatus
	WinningOutcome  string
	TradingClosesAt *time.Time
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Resolvable reports whether a market is eligible for a resolution proposal:
// trading has ended and no final outcome has been recorded yet.
func (m Market) Resolvable(now time.Time) bool {
	if m.Status == MarketStatusResolved || m.Status == MarketStatusCancelled {
		return false
	}
	if m.TradingClosesAt != nil && now.Before(*m.TradingClosesAt) {
		return false
	}
	return true
}
