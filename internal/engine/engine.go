// Package engine implements the position/settlement engine and the
// agent scheduling loop for the trading arena.
//
// A single goroutine owns all tick-scoped state: price ticks from the
// feed trigger settlement (position ledger, then account ledger), a 1s
// clock drives the phase cycle and decision countdowns, and resolved
// oracle calls come back through an apply channel so they mutate
// current state, never a stale snapshot. No two ticks overlap.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/alejandrodnm/neuroarena/internal/news"
	"github.com/alejandrodnm/neuroarena/internal/observability"
	"github.com/alejandrodnm/neuroarena/internal/ports"
	"github.com/google/uuid"
)

const (
	// minHistoryForDecision is how many prices must be recorded before
	// agents are allowed to act.
	minHistoryForDecision = 5

	newsInterval     = 45 * time.Second
	snapshotInterval = 30 * time.Second
)

// AgentSpec seeds one competing account at startup.
type AgentSpec struct {
	ID               string
	Name             string
	Style            string
	Model            string
	DecisionInterval int // seconds; 0 uses the engine default
	InitialCountdown int // seconds until the first decision
}

// applyMsg is the single message an async task produces: either a
// resolved decision or a reaction comment.
type applyMsg struct {
	agentID  string
	decision *domain.Decision
	comment  string
}

type refinanceReq struct {
	accountID string
	reply     chan bool
}

type snapshotReq struct {
	reply chan snapshotResult
}

type snapshotResult struct {
	blob []byte
	err  error
}

// Engine is the tick driver. It owns the State and is its only writer.
type Engine struct {
	params  Params
	feed    ports.PriceFeed
	oracle  ports.Oracle
	sink    ports.EventSink
	store   ports.SnapshotStore
	metrics *observability.Metrics

	ledger   *Ledger
	accounts *AccountLedger
	sched    *Scheduler
	phases   *PhaseController
	exec     *Executor
	newsgen  *news.Generator

	state *State

	applyCh     chan applyMsg
	refinanceCh chan refinanceReq
	snapshotCh  chan snapshotReq
}

// New creates an engine with a fresh roster. store and metrics may be
// nil (no persistence / no metrics).
func New(
	params Params,
	specs []AgentSpec,
	feed ports.PriceFeed,
	oracle ports.Oracle,
	sink ports.EventSink,
	store ports.SnapshotStore,
	metrics *observability.Metrics,
) *Engine {
	params = params.withDefaults()

	e := &Engine{
		params:      params,
		feed:        feed,
		oracle:      oracle,
		sink:        sink,
		store:       store,
		metrics:     metrics,
		ledger:      NewLedger(params),
		accounts:    NewAccountLedger(params),
		sched:       NewScheduler(),
		phases:      NewPhaseController(params),
		exec:        NewExecutor(params),
		newsgen:     news.NewGenerator(0),
		applyCh:     make(chan applyMsg, 16),
		refinanceCh: make(chan refinanceReq),
		snapshotCh:  make(chan snapshotReq),
	}

	s := &State{
		Phase:   e.phases.Initial(),
		Session: params.SessionSeconds,
	}
	for _, spec := range specs {
		interval := spec.DecisionInterval
		if interval <= 0 {
			interval = params.DecisionInterval
		}
		countdown := spec.InitialCountdown
		if countdown <= 0 {
			countdown = interval
		}
		s.Accounts = append(s.Accounts, &domain.Account{
			ID:               spec.ID,
			Name:             spec.Name,
			Style:            spec.Style,
			Model:            spec.Model,
			Balance:          params.InitialBalance,
			Equity:           params.InitialBalance,
			Countdown:        countdown,
			DecisionInterval: interval,
			Status:           domain.AccountActive,
		})
	}
	e.state = s
	return e
}

// Run drives the engine until the context is cancelled. A final
// snapshot is persisted on the way out.
func (e *Engine) Run(ctx context.Context) error {
	ticks, err := e.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("engine.Run: subscribe feed: %w", err)
	}

	slog.Info("engine starting",
		"symbol", e.params.Symbol,
		"agents", len(e.state.Accounts),
		"phase", e.state.Phase.Phase,
	)

	clock := time.NewTicker(time.Second)
	defer clock.Stop()
	newsTicker := time.NewTicker(newsInterval)
	defer newsTicker.Stop()
	snapTicker := time.NewTicker(snapshotInterval)
	defer snapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.persistSnapshot(context.WithoutCancel(ctx))
			slog.Info("engine stopped")
			return nil

		case tick, ok := <-ticks:
			if !ok {
				e.persistSnapshot(context.WithoutCancel(ctx))
				return fmt.Errorf("engine.Run: price feed closed")
			}
			e.handleTick(ctx, tick)

		case <-clock.C:
			e.handleClock(ctx)

		case msg := <-e.applyCh:
			e.handleApply(ctx, msg)

		case req := <-e.refinanceCh:
			req.reply <- e.handleRefinance(ctx, req.accountID)

		case req := <-e.snapshotCh:
			blob, err := e.snapshotBlob()
			req.reply <- snapshotResult{blob: blob, err: err}

		case <-newsTicker.C:
			e.publishNews(ctx)

		case <-snapTicker.C:
			e.persistSnapshot(ctx)
		}
	}
}

// handleTick settles one price sample: ledger first, account ledger
// second. An account bankrupted here is already ELIMINATED before the
// next readiness evaluation, so it cannot trade in the same tick.
func (e *Engine) handleTick(ctx context.Context, tick domain.Tick) {
	s := e.state
	s.LastTick = &tick
	s.appendPrice(tick.Price, e.params.PriceHistory)

	justClosed := e.ledger.Settle(s, tick)
	for _, pos := range justClosed {
		acct := s.Account(pos.AgentID)
		name := pos.AgentID
		if acct != nil {
			name = acct.Name
		}
		e.emit(ctx, domain.EventClose, pos.AgentID, fmt.Sprintf(
			"%s %s closed (%s): %+.2f (%+.1f%%)",
			name, pos.Side, pos.Reason, pos.PnL, pos.PnLPercent,
		))
		if e.store != nil {
			if err := e.store.SaveClosedTrade(ctx, *pos); err != nil {
				slog.Warn("saving closed trade failed", "position", pos.ID, "err", err)
			}
		}
		if e.metrics != nil {
			e.metrics.TradesClosed.WithLabelValues(string(pos.Reason)).Inc()
		}
	}

	for _, id := range e.accounts.Settle(s, justClosed) {
		acct := s.Account(id)
		e.emit(ctx, domain.EventSystem, id, fmt.Sprintf("%s went bankrupt", acct.Name))
		if e.metrics != nil {
			e.metrics.Eliminations.Inc()
		}
	}

	if e.metrics != nil {
		e.metrics.TicksProcessed.Inc()
		for _, acct := range s.Accounts {
			e.metrics.AgentEquity.WithLabelValues(acct.Name).Set(acct.Equity)
			e.metrics.AgentBalance.WithLabelValues(acct.Name).Set(acct.Balance)
		}
	}
}

// handleClock advances the 1s simulation clock: session time, phase
// cycle, decision countdowns and readiness.
func (e *Engine) handleClock(ctx context.Context) {
	s := e.state

	if s.Session > 0 {
		s.Session--
	}

	notice, transitioned := e.phases.Tick(s)
	if transitioned {
		e.emit(ctx, domain.EventSystem, "", notice)
		if e.metrics != nil {
			e.metrics.PhaseTransitions.Inc()
		}
		if s.Phase.Phase == domain.PhaseDiscussion && e.sink != nil {
			accounts := make([]domain.Account, 0, len(s.Accounts))
			for _, a := range s.Accounts {
				accounts = append(accounts, *a)
			}
			if err := e.sink.Leaderboard(ctx, accounts); err != nil {
				slog.Warn("leaderboard error", "err", err)
			}
		}
	}

	if !e.phases.Trading(s) {
		return
	}

	e.sched.TickCountdowns(s)

	if len(s.Prices) < minHistoryForDecision {
		return
	}
	for _, acct := range e.sched.Ready(s) {
		e.dispatchDecision(ctx, acct)
	}
}

// dispatchDecision latches the account, resets its countdown and fires
// the oracle call in its own goroutine. Context for the prompt is
// copied out before the goroutine starts; the loop keeps mutating
// state while the call is in flight.
func (e *Engine) dispatchDecision(ctx context.Context, acct *domain.Account) {
	e.sched.MarkInFlight(acct)
	if e.metrics != nil {
		e.metrics.OracleRequests.Inc()
	}

	dc := e.decisionContext(acct)
	agentID := acct.ID
	hasPos := dc.Position != nil
	trendUp := e.state.TrendUp()

	go func() {
		d, err := e.oracle.RequestDecision(ctx, dc)
		if err != nil {
			slog.Warn("oracle request failed", "agent", agentID, "err", err)
			d = fallbackDecision(e.params, hasPos, trendUp)
		}
		select {
		case e.applyCh <- applyMsg{agentID: agentID, decision: &d}:
		case <-ctx.Done():
		}
	}()
}

// decisionContext copies everything the oracle prompt needs out of the
// live state.
func (e *Engine) decisionContext(acct *domain.Account) ports.DecisionContext {
	s := e.state

	dc := ports.DecisionContext{
		Account:  *acct,
		Prices:   append([]float64(nil), s.Prices...),
		Headline: e.newsgen.Current(),
	}
	dc.Account.Recent = append([]domain.Outcome(nil), acct.Recent...)

	if pos := s.OpenPosition(acct.ID); pos != nil {
		copied := *pos
		dc.Position = &copied
	}
	if s.LastTick != nil {
		dc.Trend = s.LastTick.Trend
	}

	tail := s.Events
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	for _, ev := range tail {
		who := "System"
		if a := s.Account(ev.AgentID); a != nil {
			who = a.Name
		}
		dc.Chat = append(dc.Chat, fmt.Sprintf("%s: %s", who, ev.Text))
	}
	return dc
}

// handleApply applies one resolved async message against current state.
func (e *Engine) handleApply(ctx context.Context, msg applyMsg) {
	if msg.decision == nil {
		if msg.comment != "" {
			e.emit(ctx, domain.EventComment, msg.agentID, msg.comment)
		}
		return
	}

	e.sched.Clear(msg.agentID)

	s := e.state
	acct := s.Account(msg.agentID)
	if acct == nil || s.LastTick == nil {
		return
	}

	d := *msg.decision
	if d.Fallback {
		if e.metrics != nil {
			e.metrics.OracleFailures.Inc()
		}
		e.emit(ctx, domain.EventSystem, acct.ID, fmt.Sprintf("%s could not decide this round", acct.Name))
	}

	d = coerceForPositionState(d, s.OpenPosition(acct.ID) != nil, s.TrendUp())
	tick := *s.LastTick

	switch {
	case d.Action == domain.ActionClose:
		if _, ok := e.exec.ClosePosition(s, acct.ID, domain.CloseManual, tick); ok && d.Rationale != "" {
			e.emit(ctx, domain.EventComment, acct.ID, "Closing: "+d.Rationale)
		}

	case d.Entry():
		pos, ok := e.exec.OpenPosition(s, acct.ID, d, tick)
		if !ok {
			return
		}
		if e.metrics != nil {
			e.metrics.TradesOpened.Inc()
		}
		e.emit(ctx, domain.EventTrade, acct.ID, fmt.Sprintf(
			"%s opens %s @ %.2f x%.0f (margin %.2f) — %s",
			acct.Name, pos.Side, pos.EntryPrice, pos.Leverage, pos.Margin(), d.Rationale,
		))
		e.dispatchReactions(ctx, acct.Name, *pos)
	}
	// HOLD: nothing to do.
}

// dispatchReactions asks every other active agent for one short
// comment about a just-opened position. Best effort: failures are
// dropped without a trace in the log.
func (e *Engine) dispatchReactions(ctx context.Context, trader string, pos domain.Position) {
	for _, other := range e.state.Accounts {
		if other.ID == pos.AgentID || other.Status != domain.AccountActive {
			continue
		}
		reactor := *other
		go func() {
			text, err := e.oracle.RequestReaction(ctx, reactor, trader, pos)
			if err != nil || text == "" {
				return
			}
			select {
			case e.applyCh <- applyMsg{agentID: reactor.ID, comment: text}:
			case <-ctx.Done():
			}
		}()
	}
}

// handleRefinance applies an operator refinance against current state.
func (e *Engine) handleRefinance(ctx context.Context, accountID string) bool {
	if !e.accounts.Refinance(e.state, accountID) {
		return false
	}
	acct := e.state.Account(accountID)
	e.emit(ctx, domain.EventSystem, accountID, fmt.Sprintf("%s is refinanced and back in the game", acct.Name))
	if e.metrics != nil {
		e.metrics.Refinances.Inc()
	}
	return true
}

// publishNews generates one headline and logs it as an event.
func (e *Engine) publishNews(ctx context.Context) {
	item := e.newsgen.Next(time.Now().UTC())
	e.emit(ctx, domain.EventNews, "", fmt.Sprintf("%s: %s", item.Source, item.Text))
}

// persistSnapshot saves the current state blob. Errors are logged, not
// fatal: the engine can always keep running without persistence.
func (e *Engine) persistSnapshot(ctx context.Context) {
	if e.store == nil {
		return
	}
	blob, err := e.snapshotBlob()
	if err != nil {
		slog.Warn("snapshot encode failed", "err", err)
		return
	}
	if err := e.store.SaveSnapshot(ctx, blob); err != nil {
		slog.Warn("snapshot save failed", "err", err)
		return
	}
	if e.metrics != nil {
		e.metrics.SnapshotSaves.Inc()
	}
}

// emit appends an event to the bounded log and forwards it to the sink
// in generation order.
func (e *Engine) emit(ctx context.Context, typ domain.EventType, agentID, text string) {
	ev := domain.Event{
		ID:        uuid.New().String(),
		Type:      typ,
		AgentID:   agentID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	e.state.appendEvent(ev, e.params.EventTail)
	if e.sink != nil {
		if err := e.sink.Publish(ctx, ev); err != nil {
			slog.Warn("event sink error", "err", err)
		}
	}
}

// Refinance resets an eliminated account from the outside. Only valid
// while Run is active.
func (e *Engine) Refinance(ctx context.Context, accountID string) error {
	req := refinanceReq{accountID: accountID, reply: make(chan bool, 1)}
	select {
	case e.refinanceCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case ok := <-req.reply:
		if !ok {
			return fmt.Errorf("engine.Refinance: unknown account %q", accountID)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the serialized engine state. Only valid while Run
// is active; use Restore before Run to load one.
func (e *Engine) Snapshot(ctx context.Context) ([]byte, error) {
	req := snapshotReq{reply: make(chan snapshotResult, 1)}
	select {
	case e.snapshotCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.blob, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
