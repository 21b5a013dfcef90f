package domain

import "time"

// Side is the direction of a leveraged position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// PositionStatus represents the lifecycle of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// CloseReason records why a position left the OPEN state.
type CloseReason string

const (
	CloseStop    CloseReason = "STOP"
	CloseTarget  CloseReason = "TARGET"
	CloseTimeout CloseReason = "TIMEOUT"
	CloseManual  CloseReason = "MANUAL"
)

// Position is one simulated leveraged trade. Size is notional
// (margin × leverage); PnL fields are refreshed every tick while OPEN
// and frozen at close time.
type Position struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	Symbol     string         `json:"symbol"`
	Side       Side           `json:"side"`
	EntryPrice float64        `json:"entry_price"`
	Size       float64        `json:"size"`
	Leverage   float64        `json:"leverage"`
	StopLoss   float64        `json:"stop_loss"`
	TakeProfit float64        `json:"take_profit"`
	OpenedAt   time.Time      `json:"opened_at"`
	ClosedAt   time.Time      `json:"closed_at,omitzero"`
	PnL        float64        `json:"pnl"`
	PnLPercent float64        `json:"pnl_percent"`
	Status     PositionStatus `json:"status"`
	Reason     CloseReason    `json:"close_reason,omitempty"`
	Trailing   bool           `json:"trailing"`
}

// Margin is the capital the owning agent committed to this position.
func (p Position) Margin() float64 {
	return p.Size / p.Leverage
}

// IsOpen reports whether the position is still live.
func (p Position) IsOpen() bool {
	return p.Status == PositionOpen
}
