package engine

import (
	"testing"
	"time"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryDecision(action domain.Action, leverage, risk float64) domain.Decision {
	return domain.Decision{
		Action:       action,
		Leverage:     leverage,
		RiskFraction: risk,
		Rationale:    "test",
	}
}

func TestExecutor_OpenPosition_LongWithSlippage(t *testing.T) {
	acct := activeAccount("a1", 1000)
	s := &State{Accounts: []*domain.Account{acct}}
	ex := NewExecutor(DefaultParams())

	d := entryDecision(domain.ActionOpenLong, 10, 0.10)
	d.StopLoss = 49500
	d.TakeProfit = 51000

	pos, ok := ex.OpenPosition(s, "a1", d, tickAt(50000, t0))

	require.True(t, ok)
	assert.InDelta(t, 50000*1.0002, pos.EntryPrice, 1e-6, "buy fills above mid")
	assert.InDelta(t, 100.0, pos.Margin(), 1e-9)
	assert.InDelta(t, 1000.0, pos.Size, 1e-9)
	assert.InDelta(t, 900.0, acct.Balance, 1e-9, "margin debited immediately")
	assert.Equal(t, domain.PositionOpen, pos.Status)
	assert.Equal(t, 49500.0, pos.StopLoss)
	assert.Equal(t, 51000.0, pos.TakeProfit)
}

func TestExecutor_OpenPosition_ShortFillsBelowMid(t *testing.T) {
	acct := activeAccount("a1", 1000)
	s := &State{Accounts: []*domain.Account{acct}}
	ex := NewExecutor(DefaultParams())

	pos, ok := ex.OpenPosition(s, "a1", entryDecision(domain.ActionOpenShort, 10, 0.10), tickAt(50000, t0))

	require.True(t, ok)
	assert.InDelta(t, 50000*0.9998, pos.EntryPrice, 1e-6)
	assert.Equal(t, domain.SideShort, pos.Side)
}

func TestExecutor_OpenPosition_Rejections(t *testing.T) {
	params := DefaultParams()
	ex := NewExecutor(params)

	t.Run("eliminated account", func(t *testing.T) {
		acct := activeAccount("a1", 1000)
		acct.Status = domain.AccountEliminated
		s := &State{Accounts: []*domain.Account{acct}}
		_, ok := ex.OpenPosition(s, "a1", entryDecision(domain.ActionOpenLong, 10, 0.1), tickAt(50000, t0))
		assert.False(t, ok)
		assert.InDelta(t, 1000.0, acct.Balance, 1e-9, "rejection is a no-op")
	})

	t.Run("already positioned", func(t *testing.T) {
		acct := activeAccount("a1", 1000)
		s := &State{
			Accounts:  []*domain.Account{acct},
			Positions: []*domain.Position{openLong("a1", 50000, 1000, 10, 0, 0)},
		}
		_, ok := ex.OpenPosition(s, "a1", entryDecision(domain.ActionOpenLong, 10, 0.1), tickAt(50000, t0))
		assert.False(t, ok)
	})

	t.Run("balance under margin floor", func(t *testing.T) {
		acct := activeAccount("a1", params.MinMargin-1)
		s := &State{Accounts: []*domain.Account{acct}}
		_, ok := ex.OpenPosition(s, "a1", entryDecision(domain.ActionOpenLong, 10, 0.1), tickAt(50000, t0))
		assert.False(t, ok)
	})

	t.Run("unknown account", func(t *testing.T) {
		s := &State{}
		_, ok := ex.OpenPosition(s, "ghost", entryDecision(domain.ActionOpenLong, 10, 0.1), tickAt(50000, t0))
		assert.False(t, ok)
	})
}

func TestExecutor_OpenPosition_ClampsRiskAndLeverage(t *testing.T) {
	ex := NewExecutor(DefaultParams())

	t.Run("risk clamped to band", func(t *testing.T) {
		acct := activeAccount("a1", 1000)
		s := &State{Accounts: []*domain.Account{acct}}
		pos, ok := ex.OpenPosition(s, "a1", entryDecision(domain.ActionOpenLong, 10, 0.99), tickAt(50000, t0))
		require.True(t, ok)
		assert.InDelta(t, 500.0, pos.Margin(), 1e-9) // 50% cap

		acct2 := activeAccount("a2", 1000)
		s2 := &State{Accounts: []*domain.Account{acct2}}
		pos2, ok := ex.OpenPosition(s2, "a2", entryDecision(domain.ActionOpenLong, 10, 0.001), tickAt(50000, t0))
		require.True(t, ok)
		assert.InDelta(t, 50.0, pos2.Margin(), 1e-9) // 5% floor
	})

	t.Run("leverage defaults and clamps", func(t *testing.T) {
		acct := activeAccount("a1", 1000)
		s := &State{Accounts: []*domain.Account{acct}}
		pos, ok := ex.OpenPosition(s, "a1", entryDecision(domain.ActionOpenLong, 0, 0.1), tickAt(50000, t0))
		require.True(t, ok)
		assert.Equal(t, 20.0, pos.Leverage)

		acct2 := activeAccount("a2", 1000)
		s2 := &State{Accounts: []*domain.Account{acct2}}
		pos2, ok := ex.OpenPosition(s2, "a2", entryDecision(domain.ActionOpenLong, 500, 0.1), tickAt(50000, t0))
		require.True(t, ok)
		assert.Equal(t, 50.0, pos2.Leverage)
	})
}

func TestExecutor_OpenPosition_DerivesMissingStops(t *testing.T) {
	ex := NewExecutor(DefaultParams())
	acct := activeAccount("a1", 1000)
	s := &State{Accounts: []*domain.Account{acct}}

	// No stop/target, and a wrong-side stop would also be replaced.
	pos, ok := ex.OpenPosition(s, "a1", entryDecision(domain.ActionOpenLong, 10, 0.1), tickAt(50000, t0))
	require.True(t, ok)
	assert.InDelta(t, pos.EntryPrice*0.995, pos.StopLoss, 1e-6)
	assert.InDelta(t, pos.EntryPrice*1.01, pos.TakeProfit, 1e-6)

	acct2 := activeAccount("a2", 1000)
	s2 := &State{Accounts: []*domain.Account{acct2}}
	d := entryDecision(domain.ActionOpenShort, 10, 0.1)
	d.StopLoss = 40000 // below a short's fill, nonsense, replaced
	d.TakeProfit = 60000
	pos2, ok := ex.OpenPosition(s2, "a2", d, tickAt(50000, t0))
	require.True(t, ok)
	assert.InDelta(t, pos2.EntryPrice*1.005, pos2.StopLoss, 1e-6)
	assert.InDelta(t, pos2.EntryPrice*0.99, pos2.TakeProfit, 1e-6)
}

func TestExecutor_ClosePosition_Manual(t *testing.T) {
	acct := activeAccount("a1", 900)
	pos := openLong("a1", 50000, 1000, 10, 49000, 52000)
	s := &State{Accounts: []*domain.Account{acct}, Positions: []*domain.Position{pos}}
	ex := NewExecutor(DefaultParams())

	closed, ok := ex.ClosePosition(s, "a1", domain.CloseManual, tickAt(50500, t0.Add(time.Minute)))

	require.True(t, ok)
	assert.Equal(t, domain.PositionClosed, closed.Status)
	assert.Equal(t, domain.CloseManual, closed.Reason)
	assert.InDelta(t, 10.0, closed.PnL, 1e-9)
	assert.InDelta(t, 900.0, acct.Balance, 1e-9, "realization waits for the account ledger")

	_, ok = ex.ClosePosition(s, "a1", domain.CloseManual, tickAt(50500, t0))
	assert.False(t, ok, "nothing open to close")
}
