package pricing

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Shelby3344/cardflow-sub001/internal/config"
	"github.com/Shelby3344/cardflow-sub001/internal/models"
)

// Table maps providers to their USD price per 1000 synthesized characters.
// Estimates are operational visibility only; they never gate a request.
type Table struct {
	per1K map[string]decimal.Decimal
}

var oneThousand = decimal.NewFromInt(1000)

func NewTable(cfg config.PricingConfig) *Table {
	return &Table{per1K: map[string]decimal.Decimal{
		models.ProviderOpenAI:     parseRate(cfg.OpenAIPer1KChars, "0.015"),
		models.ProviderElevenLabs: parseRate(cfg.ElevenLabsPer1KChars, "0.30"),
	}}
}

func parseRate(raw, fallback string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		slog.Warn("invalid pricing rate, using fallback", "rate", raw, "fallback", fallback)
		rate, _ = decimal.NewFromString(fallback)
	}
	return rate
}

// Estimate returns the cost of synthesizing chars characters with the given
// provider. Unknown providers cost zero.
func (t *Table) Estimate(provider string, chars int) decimal.Decimal {
	if t == nil || chars <= 0 {
		return decimal.Zero
	}
	rate, ok := t.per1K[provider]
	if !ok {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(chars))).Div(oneThousand)
}
