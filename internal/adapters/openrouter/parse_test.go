package openrouter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

func TestParseDecision_PlainJSON(t *testing.T) {
	d, err := parseDecision(`{"action":"LONG","leverage":20,"riskFraction":0.1,"stopLoss":49500,"takeProfit":51000,"confidence":70,"reasoning":"buyers are pushing"}`)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionOpenLong, d.Action)
	assert.InDelta(t, 20.0, d.Leverage, 1e-9)
	assert.InDelta(t, 0.1, d.RiskFraction, 1e-9)
	assert.InDelta(t, 49500.0, d.StopLoss, 1e-9)
	assert.InDelta(t, 51000.0, d.TakeProfit, 1e-9)
	assert.Equal(t, "buyers are pushing", d.Rationale)
}

func TestParseDecision_ThinkBlockAndFences(t *testing.T) {
	raw := "<think>\nThe orderbook is heavy on the ask side, price will drop.\n{\"not\":\"this one\"}\n</think>\n" +
		"Here is my decision:\n```json\n{\"action\":\"SHORT\",\"leverage\":15,\"reasoning\":\"sellers in control\"}\n```"

	d, err := parseDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOpenShort, d.Action)
	assert.Equal(t, "sellers in control", d.Rationale)
}

func TestParseDecision_MissingFieldsDefaultToZero(t *testing.T) {
	// The executor fills leverage, stop and target later.
	d, err := parseDecision(`{"action":"close","reasoning":"taking profit"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionClose, d.Action)
	assert.Zero(t, d.Leverage)
	assert.Zero(t, d.StopLoss)
}

func TestParseDecision_Errors(t *testing.T) {
	cases := map[string]string{
		"no json":        "I would rather wait and see.",
		"broken json":    `{"action":"LONG",`,
		"unknown action": `{"action":"YOLO"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseDecision(raw)
			assert.Error(t, err)
		})
	}
}

func TestParseAction(t *testing.T) {
	cases := map[string]domain.Action{
		"LONG":       domain.ActionOpenLong,
		"open_long":  domain.ActionOpenLong,
		"Buy":        domain.ActionOpenLong,
		"SHORT":      domain.ActionOpenShort,
		"sell":       domain.ActionOpenShort,
		" hold ":     domain.ActionHold,
		"WAIT":       domain.ActionHold,
		"close":      domain.ActionClose,
	}
	for raw, want := range cases {
		got, err := parseAction(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := parseAction("exit")
	assert.Error(t, err)
}

func TestCleanComment(t *testing.T) {
	raw := "<think>should I mock him?</think>\n  \"Bold move,\n   let's see it survive the hour.\"  "
	assert.Equal(t, "Bold move, let's see it survive the hour.", cleanComment(raw))

	long := strings.Repeat("a", 500)
	assert.Len(t, cleanComment(long), 200)
}

func TestBuildDecisionPrompt_PositionMenus(t *testing.T) {
	dc := decisionCtx()

	_, user := buildDecisionPrompt(dc)
	assert.Contains(t, user, "LONG|SHORT")
	assert.Contains(t, user, "WAIT is forbidden")
	assert.NotContains(t, user, "HOLD|CLOSE")

	dc.Position = &domain.Position{Side: domain.SideLong, EntryPrice: 50000, Leverage: 20, PnL: 12.5, PnLPercent: 12.5}
	_, user = buildDecisionPrompt(dc)
	assert.Contains(t, user, "HOLD|CLOSE")
	assert.Contains(t, user, "YOUR OPEN POSITION")
}

func TestBuildDecisionPrompt_TruncatesPriceTail(t *testing.T) {
	dc := decisionCtx()
	dc.Prices = nil
	for i := 0; i < priceTail*2; i++ {
		dc.Prices = append(dc.Prices, 40000+float64(i))
	}

	_, user := buildDecisionPrompt(dc)
	assert.NotContains(t, user, "40000.0", "oldest prices are dropped")
	assert.Contains(t, user, "40119.0")
}
