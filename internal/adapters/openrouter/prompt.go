package openrouter

import (
	"fmt"
	"strings"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/alejandrodnm/neuroarena/internal/ports"
)

// priceTail is how many recent prices go into the prompt.
const priceTail = 60

// buildDecisionPrompt renders the system persona and the market prompt
// for one decision round.
func buildDecisionPrompt(dc ports.DecisionContext) (system, user string) {
	acct := dc.Account

	var sys strings.Builder
	fmt.Fprintf(&sys, "You are %s, an autonomous crypto trader. Style: %s.\n", acct.Name, acct.Style)
	sys.WriteString("Keep the reasoning short and plain, one sentence a beginner would understand. No jargon.\n")

	if len(acct.Recent) > 0 {
		wins := 0
		for _, o := range acct.Recent {
			if o == domain.OutcomeWin {
				wins++
			}
		}
		fmt.Fprintf(&sys, "Your last %d trades: %d wins, %d losses (win rate %.0f%%). ",
			len(acct.Recent), wins, len(acct.Recent)-wins, acct.WinRate()*100)
		if acct.WinRate() < 0.5 {
			sys.WriteString("You are losing money. Change your approach.\n")
		} else {
			sys.WriteString("Your approach is working. Keep the rhythm.\n")
		}
	}
	sys.WriteString("Answer with strictly valid JSON and nothing else.")

	var usr strings.Builder
	usr.WriteString("MARKET (BTC/USDT):\n")
	prices := dc.Prices
	if len(prices) > priceTail {
		prices = prices[len(prices)-priceTail:]
	}
	if len(prices) > 0 {
		fmt.Fprintf(&usr, "Price: $%.2f\n", prices[len(prices)-1])
		fmt.Fprintf(&usr, "Trend: %s\n", trendLabel(dc.Trend))
		usr.WriteString("Recent prices: ")
		for i, p := range prices {
			if i > 0 {
				usr.WriteString(", ")
			}
			fmt.Fprintf(&usr, "%.1f", p)
		}
		usr.WriteByte('\n')
	}
	fmt.Fprintf(&usr, "Your balance: $%.2f (equity $%.2f)\n", acct.Balance, acct.Equity)

	if dc.Headline != nil {
		fmt.Fprintf(&usr, "News (%s, %s): %s\n", dc.Headline.Source, dc.Headline.Sentiment, dc.Headline.Text)
	}

	usr.WriteString("\nCHAT:\n")
	if len(dc.Chat) == 0 {
		usr.WriteString("(silence)\n")
	}
	for _, line := range dc.Chat {
		usr.WriteString(line)
		usr.WriteByte('\n')
	}

	if pos := dc.Position; pos != nil {
		fmt.Fprintf(&usr, "\nYOUR OPEN POSITION:\n%s from $%.2f, leverage x%.0f\nPnL: $%.2f (%.2f%%)\n",
			pos.Side, pos.EntryPrice, pos.Leverage, pos.PnL, pos.PnLPercent)
		usr.WriteString("\nDECIDE: HOLD (keep it) or CLOSE (lock in the result).\n")
		usr.WriteString(`Reply JSON: { "action": "HOLD|CLOSE", "confidence": number, "reasoning": "string" }`)
	} else {
		usr.WriteString("\nYou have no position. DECIDE: LONG (bet on a rise) or SHORT (bet on a fall).\n")
		usr.WriteString("WAIT is forbidden. You must place a bet.\n")
		usr.WriteString(`Reply JSON: { "action": "LONG|SHORT", "leverage": number (10-50), "riskFraction": number (0.05-0.5 of balance), "stopLoss": number, "takeProfit": number, "confidence": number, "reasoning": "string" }`)
	}

	return sys.String(), usr.String()
}

// buildReactionPrompt renders the prompt for a one-line reaction to
// another agent's trade.
func buildReactionPrompt(reactor domain.Account, trader string, pos domain.Position) (system, user string) {
	system = fmt.Sprintf("You are %s, an autonomous crypto trader. Style: %s. Answer with one short chat message, no JSON.", reactor.Name, reactor.Style)
	user = fmt.Sprintf(
		"%s just opened a %s on BTC at $%.2f with x%.0f leverage. React in one sentence: tease, agree or warn. Max 15 words.",
		trader, pos.Side, pos.EntryPrice, pos.Leverage,
	)
	return system, user
}

func trendLabel(t domain.Trend) string {
	switch t {
	case domain.TrendUp:
		return "rising"
	case domain.TrendDown:
		return "falling"
	default:
		return "flat"
	}
}
