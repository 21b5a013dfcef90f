package openrouter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// Reasoning models wrap their chain of thought in <think> tags; it has
// to go before JSON parsing.
var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// decisionPayload is the JSON shape the models are asked to produce.
type decisionPayload struct {
	Action       string  `json:"action"`
	Leverage     float64 `json:"leverage"`
	RiskFraction float64 `json:"riskFraction"`
	StopLoss     float64 `json:"stopLoss"`
	TakeProfit   float64 `json:"takeProfit"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// parseDecision turns raw model output into a decision. It tolerates
// chain-of-thought blocks, markdown fences and prose around the JSON
// object.
func parseDecision(text string) (domain.Decision, error) {
	cleaned := extractJSON(text)
	if cleaned == "" {
		return domain.Decision{}, fmt.Errorf("no JSON object in response")
	}

	var p decisionPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return domain.Decision{}, fmt.Errorf("decode decision: %w", err)
	}

	action, err := parseAction(p.Action)
	if err != nil {
		return domain.Decision{}, err
	}

	return domain.Decision{
		Action:       action,
		Leverage:     p.Leverage,
		StopLoss:     p.StopLoss,
		TakeProfit:   p.TakeProfit,
		RiskFraction: p.RiskFraction,
		Confidence:   p.Confidence,
		Rationale:    strings.TrimSpace(p.Reasoning),
	}, nil
}

// parseAction maps the model's action vocabulary onto the domain's.
func parseAction(raw string) (domain.Action, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LONG", "OPEN_LONG", "BUY":
		return domain.ActionOpenLong, nil
	case "SHORT", "OPEN_SHORT", "SELL":
		return domain.ActionOpenShort, nil
	case "HOLD", "WAIT":
		return domain.ActionHold, nil
	case "CLOSE":
		return domain.ActionClose, nil
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// extractJSON strips think blocks and fences, then slices from the
// first '{' to the last '}'.
func extractJSON(text string) string {
	text = thinkRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// cleanComment normalizes a free-text reaction: think blocks and
// quotes removed, whitespace collapsed, length capped.
func cleanComment(text string) string {
	text = thinkRe.ReplaceAllString(text, "")
	text = strings.Trim(strings.TrimSpace(text), `"`)
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
