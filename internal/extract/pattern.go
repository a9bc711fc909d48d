package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/canonical"
	"github.com/dvloznov/statement-extractor/internal/domain"
)

// appleCardPattern matches the tight Apple Card layout: a full date, a
// merchant run, and a dollar-prefixed amount anchored at end of line.
// genericPattern is looser so it can read most tabular bank layouts; it
// tolerates a missing year and a leading minus sign.
var (
	appleCardPattern = mustLinePattern(`(?P<date>\d{2}/\d{2}/\d{4})\s+(?P<merchant>.+?)\s+\$(?P<amount>[0-9,]+\.\d{2})$`)
	genericPattern   = mustLinePattern(`(?P<date>\d{2}/\d{2}(?:/\d{4})?)\s+(?P<merchant>[A-Za-z0-9 .,&'*-]+?)\s+(?P<amount>-?[0-9,]+\.\d{2})`)
)

// PatternResult carries the deterministic pass output. Dropped counts the
// lines that matched a grammar but carried an unparseable amount.
type PatternResult struct {
	Transactions []domain.Transaction
	Dropped      int
}

// PatternExtract runs the grammar for the detected statement family over
// the full text. Malformed candidates are dropped silently but counted.
func PatternExtract(text, statementType string) PatternResult {
	pattern := genericPattern
	if statementType == StatementAppleCard {
		pattern = appleCardPattern
	}

	var result PatternResult
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		groups := namedGroups(pattern, match)

		amountStr := strings.ReplaceAll(strings.ReplaceAll(groups["amount"], "$", ""), ",", "")
		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil {
			result.Dropped++
			continue
		}

		rawMerchant := strings.TrimSpace(groups["merchant"])
		name, category, confidence := canonical.Normalize(rawMerchant)
		if category == "" {
			category = domain.CategoryOther
		}

		result.Transactions = append(result.Transactions, domain.Transaction{
			Date:        groups["date"],
			Merchant:    name,
			RawMerchant: rawMerchant,
			Amount:      amount,
			Category:    category,
			RawLine:     strings.TrimSpace(match[0]),
			Confidence:  confidence,
		})
	}
	return result
}

func mustLinePattern(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)` + expr)
}

func namedGroups(pattern *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string, len(match))
	for i, name := range pattern.SubexpNames() {
		if name != "" && i < len(match) {
			groups[name] = match[i]
		}
	}
	return groups
}
