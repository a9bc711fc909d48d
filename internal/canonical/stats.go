package canonical

import "github.com/dvloznov/statement-extractor/internal/domain"

// Stats summarizes how much a canonicalization pass collapsed the merchant
// space of a transaction list.
type Stats struct {
	Total            int     `json:"total"`
	HighConfidence   int     `json:"high_confidence"`
	MediumConfidence int     `json:"medium_confidence"`
	LowConfidence    int     `json:"low_confidence"`
	UniqueRaw        int     `json:"unique_raw"`
	UniqueNormalized int     `json:"unique_normalized"`
	ReductionRatio   float64 `json:"reduction_ratio"`
}

// Enrich normalizes the merchant of every transaction in place. The raw
// merchant is preserved in RawMerchant, and a rule-suggested category only
// fills in when the transaction has none (or only the catch-all).
func Enrich(txs []domain.Transaction) {
	for i := range txs {
		raw := txs[i].RawMerchant
		if raw == "" {
			raw = txs[i].Merchant
		}
		name, category, confidence := Normalize(raw)

		txs[i].RawMerchant = raw
		txs[i].Merchant = name
		txs[i].Confidence = confidence

		if category != "" && (txs[i].Category == "" || txs[i].Category == domain.CategoryOther) {
			txs[i].Category = category
		}
		if txs[i].Category == "" {
			txs[i].Category = domain.CategoryOther
		}
	}
}

// ComputeStats tallies confidence tiers and the raw-to-normalized
// reduction ratio for an enriched transaction list.
func ComputeStats(txs []domain.Transaction) Stats {
	stats := Stats{Total: len(txs)}

	rawSeen := make(map[string]bool)
	normalizedSeen := make(map[string]bool)

	for _, tx := range txs {
		switch {
		case tx.Confidence >= 0.9:
			stats.HighConfidence++
		case tx.Confidence >= 0.5:
			stats.MediumConfidence++
		default:
			stats.LowConfidence++
		}

		raw := tx.RawMerchant
		if raw == "" {
			raw = tx.Merchant
		}
		rawSeen[raw] = true
		normalizedSeen[tx.Merchant] = true
	}

	stats.UniqueRaw = len(rawSeen)
	stats.UniqueNormalized = len(normalizedSeen)
	if stats.UniqueRaw > 0 {
		ratio := 1 - float64(stats.UniqueNormalized)/float64(stats.UniqueRaw)
		stats.ReductionRatio = float64(int(ratio*100+0.5)) / 100
	}
	return stats
}
