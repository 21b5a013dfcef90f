// Package news produces the synthetic headline feed the agents read.
package news

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/google/uuid"
)

// FeedBound caps how many headlines the generator retains.
const FeedBound = 20

var sources = []string{
	"Bloomberg Crypto", "CoinDesk", "WhaleAlert", "Reuters", "CryptoPanic", "Glassnode",
}

var bullish = []string{
	"BlackRock raises the Bitcoin allocation of its global fund by {n}%",
	"SEC hints at spot Ethereum ETF approval as early as next week",
	"MicroStrategy adds another {n}00 BTC to its balance sheet",
	"Fed signals rate cuts may come earlier than expected",
	"Bitcoin hashrate prints a new all-time high",
	"Whale moves {n}000 BTC to cold storage (accumulation)",
}

var bearish = []string{
	"Mt. Gox trustee prepares distribution of {n}000 BTC to creditors",
	"SEC sues major exchange over unregistered securities",
	"Inflation print comes in hot, markets slide",
	"Whale transfers {n}000 BTC to an exchange (possible dump)",
	"Miner reserves shrink, capitulation fears grow",
	"DeFi protocol exploited for ${n}M",
}

var neutral = []string{
	"Bitcoin mining difficulty adjusts by {n}% this epoch",
	"Stablecoin transfer volume overtakes Visa for the month",
	"Market consolidates ahead of CPI data",
	"Derivatives open interest flat on the day",
	"BTC/S&P 500 correlation at a six-month low",
}

// Generator emits random headlines with a market bias. It keeps a
// bounded feed and a running sentiment score for prompts.
type Generator struct {
	rng  *rand.Rand
	feed []domain.NewsItem
}

// NewGenerator creates a generator seeded from the given source, or
// from the current time when seed is 0.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Next generates one headline, prepends it to the bounded feed and
// returns it.
func (g *Generator) Next(now time.Time) domain.NewsItem {
	roll := g.rng.Float64()

	var sentiment domain.Sentiment
	var pool []string
	switch {
	case roll > 0.65:
		sentiment = domain.SentimentBullish
		pool = bullish
	case roll < 0.35:
		sentiment = domain.SentimentBearish
		pool = bearish
	default:
		sentiment = domain.SentimentNeutral
		pool = neutral
	}

	text := strings.ReplaceAll(
		pool[g.rng.Intn(len(pool))],
		"{n}",
		fmt.Sprintf("%d", g.rng.Intn(50)+1),
	)

	item := domain.NewsItem{
		ID:        uuid.New().String(),
		Text:      text,
		Source:    sources[g.rng.Intn(len(sources))],
		Sentiment: sentiment,
		Timestamp: now,
	}

	g.feed = append([]domain.NewsItem{item}, g.feed...)
	if len(g.feed) > FeedBound {
		g.feed = g.feed[:FeedBound]
	}
	return item
}

// Current returns the latest headline, or nil before the first one.
func (g *Generator) Current() *domain.NewsItem {
	if len(g.feed) == 0 {
		return nil
	}
	item := g.feed[0]
	return &item
}

// SentimentScore maps the recent feed to a 0–100 fear/greed score.
func (g *Generator) SentimentScore() int {
	score := 50
	for _, item := range g.feed {
		switch item.Sentiment {
		case domain.SentimentBullish:
			score += 5
		case domain.SentimentBearish:
			score -= 5
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
