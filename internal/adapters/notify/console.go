// Package notify renders arena events and leaderboards to the console.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.EventSink.
type Console struct {
	out io.Writer
}

// NewConsole creates a sink that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a sink for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Publish prints one event as a compact timestamped line.
func (c *Console) Publish(_ context.Context, ev domain.Event) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := fmt.Fprintf(c.out, "[%s]%s %s\n", ts.Format("15:04:05"), eventTag(ev.Type), ev.Text)
	return err
}

// Leaderboard prints the accounts ranked by equity.
func (c *Console) Leaderboard(_ context.Context, accounts []domain.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	ranked := append([]domain.Account(nil), accounts...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Equity > ranked[j].Equity })

	fmt.Fprintf(c.out, "\n=== LEADERBOARD [%s] ===\n", time.Now().Format("15:04:05"))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Agent", "Style", "Balance", "Equity", "W/L", "WinRate", "Status")

	for i, acct := range ranked {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(acct.Name, 20),
			acct.Style,
			fmt.Sprintf("$%.2f", acct.Balance),
			fmt.Sprintf("$%.2f", acct.Equity),
			fmt.Sprintf("%d/%d", acct.Wins, acct.Losses),
			winRateLabel(acct),
			string(acct.Status),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
	return nil
}

func eventTag(t domain.EventType) string {
	switch t {
	case domain.EventTrade:
		return "[TRADE]"
	case domain.EventClose:
		return "[CLOSE]"
	case domain.EventNews:
		return "[NEWS] "
	case domain.EventComment:
		return "[CHAT] "
	default:
		return "[SYS]  "
	}
}

func winRateLabel(acct domain.Account) string {
	if acct.Wins+acct.Losses == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", acct.WinRate()*100)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
