package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/alejandrodnm/neuroarena/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	ch chan domain.Tick
}

func (f *stubFeed) Subscribe(context.Context) (<-chan domain.Tick, error) {
	return f.ch, nil
}

type stubOracle struct {
	decision domain.Decision
	err      error
	calls    int
}

func (o *stubOracle) RequestDecision(context.Context, ports.DecisionContext) (domain.Decision, error) {
	o.calls++
	return o.decision, o.err
}

func (o *stubOracle) RequestReaction(context.Context, domain.Account, string, domain.Position) (string, error) {
	return "", errors.New("quiet")
}

type memorySink struct {
	events []domain.Event
}

func (m *memorySink) Publish(_ context.Context, ev domain.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) Leaderboard(context.Context, []domain.Account) error { return nil }

func newTestEngine(t *testing.T, specs ...AgentSpec) (*Engine, *stubOracle, *memorySink) {
	t.Helper()
	if len(specs) == 0 {
		specs = []AgentSpec{{ID: "a1", Name: "Alpha", Style: "Scalper", DecisionInterval: 30}}
	}
	oracle := &stubOracle{}
	sink := &memorySink{}
	feed := &stubFeed{ch: make(chan domain.Tick)}
	e := New(DefaultParams(), specs, feed, oracle, sink, nil, nil)
	return e, oracle, sink
}

// assertEquityInvariant checks the §-balance identity for every account:
// equity == balance + Σ margin(open) + Σ unrealized pnl(open).
func assertEquityInvariant(t *testing.T, s *State) {
	t.Helper()
	for _, acct := range s.Accounts {
		want := acct.Balance
		for _, pos := range s.Positions {
			if pos.AgentID == acct.ID && pos.IsOpen() {
				want += pos.Margin() + pos.PnL
			}
		}
		assert.InDelta(t, want, acct.Equity, 1e-6, "equity identity for %s", acct.ID)
	}
}

func applyEntry(e *Engine, agentID string, d domain.Decision) {
	e.handleApply(context.Background(), applyMsg{agentID: agentID, decision: &d})
}

func TestEngine_OpenSettleCloseRoundTrip(t *testing.T) {
	e, _, sink := newTestEngine(t)
	ctx := context.Background()

	e.handleTick(ctx, tickAt(50000, t0))

	d := entryDecision(domain.ActionOpenLong, 10, 0.10)
	d.StopLoss = 49500
	d.TakeProfit = 51000
	applyEntry(e, "a1", d)

	pos := e.state.OpenPosition("a1")
	require.NotNil(t, pos)
	preTradeBalance := 1000.0
	assert.InDelta(t, preTradeBalance-pos.Margin(), e.state.Account("a1").Balance, 1e-9)

	// Mark to market, no exit.
	e.handleTick(ctx, tickAt(50500, t0.Add(time.Minute)))
	assertEquityInvariant(t, e.state)
	assert.Greater(t, pos.PnL, 0.0)

	// Stop touch closes and settles in the same tick.
	e.handleTick(ctx, tickAt(49500, t0.Add(2*time.Minute)))
	assert.Equal(t, domain.PositionClosed, pos.Status)
	assert.Equal(t, domain.CloseStop, pos.Reason)
	assertEquityInvariant(t, e.state)

	acct := e.state.Account("a1")
	assert.Equal(t, 1, acct.Losses)
	assert.Nil(t, e.state.OpenPosition("a1"))

	var closeEvents int
	for _, ev := range sink.events {
		if ev.Type == domain.EventClose {
			closeEvents++
		}
	}
	assert.Equal(t, 1, closeEvents)
}

func TestEngine_NoSecondOpenWhilePositioned(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	e.handleTick(ctx, tickAt(50000, t0))

	applyEntry(e, "a1", entryDecision(domain.ActionOpenLong, 10, 0.10))
	first := e.state.OpenPosition("a1")
	require.NotNil(t, first)

	// A second entry resolving late is coerced to HOLD.
	applyEntry(e, "a1", entryDecision(domain.ActionOpenShort, 10, 0.10))

	var open int
	for _, p := range e.state.Positions {
		if p.IsOpen() {
			open++
		}
	}
	assert.Equal(t, 1, open)
	assert.Same(t, first, e.state.OpenPosition("a1"))
}

func TestEngine_BankruptcyBlocksTradingUntilRefinance(t *testing.T) {
	e, _, sink := newTestEngine(t)
	ctx := context.Background()
	e.handleTick(ctx, tickAt(50000, t0))

	// Max risk, max leverage: margin 500, size 25000.
	applyEntry(e, "a1", entryDecision(domain.ActionOpenLong, 50, 0.50))
	pos := e.state.OpenPosition("a1")
	require.NotNil(t, pos)

	// The default stop fires on the way down; realizing the loss takes
	// equity below the floor.
	e.handleTick(ctx, tickAt(48000, t0.Add(time.Minute)))

	acct := e.state.Account("a1")
	require.Equal(t, domain.AccountEliminated, acct.Status)
	assert.Zero(t, acct.Balance)
	assert.Zero(t, acct.Equity)

	// Eliminated accounts cannot open.
	applyEntry(e, "a1", entryDecision(domain.ActionOpenLong, 10, 0.10))
	assert.Nil(t, e.state.OpenPosition("a1"))

	// Refinance is the only way back.
	require.True(t, e.handleRefinance(ctx, "a1"))
	assert.Equal(t, domain.AccountActive, acct.Status)
	assert.InDelta(t, 1000.0, acct.Balance, 1e-9)

	applyEntry(e, "a1", entryDecision(domain.ActionOpenLong, 10, 0.10))
	assert.NotNil(t, e.state.OpenPosition("a1"))

	var bankruptNotices int
	for _, ev := range sink.events {
		if ev.Type == domain.EventSystem && ev.AgentID == "a1" {
			bankruptNotices++
		}
	}
	assert.GreaterOrEqual(t, bankruptNotices, 1)
}

func TestEngine_DispatchResetsCountdownAtIssueTime(t *testing.T) {
	e, oracle, _ := newTestEngine(t)
	oracle.decision = domain.Decision{Action: domain.ActionHold}
	ctx := context.Background()

	for i := 0; i < minHistoryForDecision; i++ {
		e.handleTick(ctx, tickAt(50000+float64(i), t0.Add(time.Duration(i)*time.Second)))
	}

	acct := e.state.Account("a1")
	acct.Countdown = 0

	e.handleClock(ctx)

	assert.Equal(t, acct.DecisionInterval, acct.Countdown, "countdown reset when the request is issued")
	assert.True(t, e.sched.InFlight("a1"))

	// While in flight the account never becomes ready again.
	acct.Countdown = 0
	e.handleClock(ctx)
	assert.Equal(t, 0, acct.Countdown, "no second dispatch while in flight")
}

func TestEngine_DiscussionFreezesCountdownsNotSettlement(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	e.handleTick(ctx, tickAt(50000, t0))

	applyEntry(e, "a1", entryDecision(domain.ActionOpenLong, 10, 0.10))
	pos := e.state.OpenPosition("a1")
	require.NotNil(t, pos)
	pos.StopLoss = 49500

	e.state.Phase = domain.PhaseState{Phase: domain.PhaseDiscussion, Remaining: 100}
	acct := e.state.Account("a1")
	acct.Countdown = 7

	e.handleClock(ctx)
	assert.Equal(t, 7, acct.Countdown, "countdowns freeze during discussion")

	// Open positions still mark to market and can exit.
	e.handleTick(ctx, tickAt(49500, t0.Add(time.Minute)))
	assert.Equal(t, domain.PositionClosed, pos.Status)
	assert.Equal(t, domain.CloseStop, pos.Reason)
}

func TestEngine_OracleFailureFallsBackAndClearsLatch(t *testing.T) {
	e, _, sink := newTestEngine(t)
	ctx := context.Background()
	e.handleTick(ctx, tickAt(50000, t0))
	e.handleTick(ctx, tickAt(50100, t0.Add(time.Second))) // uptrend

	e.sched.MarkInFlight(e.state.Account("a1"))
	d := fallbackDecision(e.params, false, e.state.TrendUp())
	e.handleApply(ctx, applyMsg{agentID: "a1", decision: &d})

	assert.False(t, e.sched.InFlight("a1"), "latch cleared on failure")
	pos := e.state.OpenPosition("a1")
	require.NotNil(t, pos, "fallback still trades with the trend")
	assert.Equal(t, domain.SideLong, pos.Side)

	var couldNotDecide int
	for _, ev := range sink.events {
		if ev.Type == domain.EventSystem && ev.AgentID == "a1" {
			couldNotDecide++
		}
	}
	assert.Equal(t, 1, couldNotDecide)
}

func TestEngine_SnapshotRestoreRoundTrip(t *testing.T) {
	e, _, _ := newTestEngine(t,
		AgentSpec{ID: "a1", Name: "Alpha", DecisionInterval: 30},
		AgentSpec{ID: "a2", Name: "Omega", DecisionInterval: 20},
	)
	ctx := context.Background()
	e.handleTick(ctx, tickAt(50000, t0))

	applyEntry(e, "a1", entryDecision(domain.ActionOpenLong, 10, 0.10))
	open := e.state.OpenPosition("a1")
	require.NotNil(t, open)
	open.StopLoss = 48000
	open.TakeProfit = 60000

	// a2 trades and stops out before the snapshot; a1 stays open.
	applyEntry(e, "a2", entryDecision(domain.ActionOpenShort, 10, 0.10))
	e.handleTick(ctx, tickAt(50600, t0.Add(time.Minute)))
	require.Nil(t, e.state.OpenPosition("a2"))
	lossesBefore := e.state.Account("a2").Losses

	blob, err := e.snapshotBlob()
	require.NoError(t, err)

	restored, _, _ := newTestEngine(t, AgentSpec{ID: "a1"}, AgentSpec{ID: "a2"})
	require.NoError(t, restored.Restore(blob))

	// Accounts and positions round-trip.
	require.Len(t, restored.state.Accounts, 2)
	for i, want := range e.state.Accounts {
		assert.Equal(t, *want, *restored.state.Accounts[i])
	}
	require.Len(t, restored.state.Positions, len(e.state.Positions))
	assert.Equal(t, e.state.Phase, restored.state.Phase)
	assert.Equal(t, e.state.Session, restored.state.Session)
	require.NotNil(t, restored.state.OpenPosition("a1"))

	// Replaying the same price must not re-fire a2's stop or re-realize
	// its loss; a1's open position simply marks to market.
	closed := restored.ledger.Settle(restored.state, tickAt(50600, t0.Add(2*time.Minute)))
	assert.Empty(t, closed)
	restored.accounts.Settle(restored.state, closed)
	assert.Equal(t, lossesBefore, restored.state.Account("a2").Losses)
	assertEquityInvariant(t, restored.state)
}
