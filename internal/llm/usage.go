package llm

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Language model calls by provider and result.",
	}, []string{"provider", "result"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by language model calls.",
	}, []string{"provider", "kind"})

	spendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voiceagents",
		Subsystem: "llm",
		Name:      "spend_usd_total",
		Help:      "Estimated language model spend in US dollars.",
	}, []string{"provider"})
)

// USD per million tokens, keyed by model family. Providers answer with
// dated model names, so lookups match on the longest prefix.
var pricing = map[string]struct{ in, out float64 }{
	"gpt-4o-mini":      {0.15, 0.60},
	"gpt-4o":           {2.50, 10.00},
	"gpt-4.1-mini":     {0.40, 1.60},
	"claude-3-5-haiku": {0.80, 4.00},
	"claude-sonnet-4":  {3.00, 15.00},
}

// Spend estimates the cost of a completion. Unknown models cost nothing.
func Spend(c *Completion) float64 {
	var best string
	for family := range pricing {
		if strings.HasPrefix(c.Model, family) && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return 0
	}
	p := pricing[best]
	return (float64(c.InputTokens)*p.in + float64(c.OutputTokens)*p.out) / 1e6
}

func record(c *Completion) {
	tokensTotal.WithLabelValues(c.Provider, "input").Add(float64(c.InputTokens))
	tokensTotal.WithLabelValues(c.Provider, "output").Add(float64(c.OutputTokens))
	spendTotal.WithLabelValues(c.Provider).Add(Spend(c))
}
