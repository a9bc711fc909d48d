// Package canonical collapses raw, noisy merchant strings into a small set
// of canonical names with coarse confidence scores.
package canonical

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

// Confidence tiers. These are a coarse trust signal, not calibrated
// probabilities: a rule match is trusted, a heuristic cleanup less so,
// an untouched string least of all.
const (
	ConfidenceRule    = 0.95
	ConfidenceCleanup = 0.5
	ConfidenceRaw     = 0.3
)

type rule struct {
	pattern   *regexp.Regexp
	canonical string // may contain $1 to substitute the first capture group
	category  domain.Category
}

func mustRule(pattern, canonical string, category domain.Category) rule {
	return rule{
		pattern:   regexp.MustCompile("(?i)" + pattern),
		canonical: canonical,
		category:  category,
	}
}

// rules are tried in declaration order; first match wins.
var rules = []rule{
	mustRule(`^AMZN\s*\*?.*|^AMAZON\.COM\s*\*?.*|^Amazon\s*Prime.*|^AMAZON MKTP.*`, "Amazon", domain.CategoryShopping),
	mustRule(`^UBER\s*\*?\s*EATS.*`, "Uber Eats", domain.CategoryDining),
	mustRule(`^UBER\s*\*?\s*TRIP.*|^UBER\s*\*?\s*BV.*`, "Uber", domain.CategoryTransportation),
	mustRule(`^LYFT\s*\*?.*`, "Lyft", domain.CategoryTransportation),
	mustRule(`^DOORDASH\s*\*?.*|^DD\s*\*?DOORDASH.*`, "DoorDash", domain.CategoryDining),
	mustRule(`^GRUBHUB\s*\*?.*`, "Grubhub", domain.CategoryDining),
	mustRule(`^TST\s*\*\s*(.+)`, "$1", domain.CategoryDining),
	mustRule(`^SQ\s*\*\s*(.+)`, "$1", domain.CategoryShopping),
	mustRule(`^PAYPAL\s*\*\s*(.+)`, "$1 (PayPal)", domain.CategoryShopping),
	mustRule(`^VENMO\s*\*?.*`, "Venmo", domain.CategoryTransfer),
	mustRule(`^ZELLE\s*\*?.*`, "Zelle", domain.CategoryTransfer),
	mustRule(`^APPLE\.COM/BILL.*|^APPLE\.COM/US.*`, "Apple", domain.CategorySubscriptions),
	mustRule(`^GOOGLE\s*\*?\s*PLAY.*|^GOOGLE\s*\*?\s*STORAGE.*`, "Google", domain.CategorySubscriptions),
	mustRule(`^NETFLIX\.COM.*|^NETFLIX\s*\*?.*`, "Netflix", domain.CategoryEntertainment),
	mustRule(`^SPOTIFY.*`, "Spotify", domain.CategoryEntertainment),
	mustRule(`^HULU.*`, "Hulu", domain.CategoryEntertainment),
	mustRule(`^HBO\s*MAX.*|^HBOMAX.*`, "HBO Max", domain.CategoryEntertainment),
	mustRule(`^DISNEY\s*PLUS.*|^DISNEYPLUS.*`, "Disney+", domain.CategoryEntertainment),
	mustRule(`^WALMART\s*\*?.*|^WM\s+SUPERCENTER.*`, "Walmart", domain.CategoryShopping),
	mustRule(`^TARGET\s*\*?.*|^TARGET\s+\d+.*`, "Target", domain.CategoryShopping),
	mustRule(`^COSTCO\s*\*?.*|^COSTCO WHSE.*`, "Costco", domain.CategoryShopping),
	mustRule(`^WHOLE\s*FOODS.*|^WHOLEFDS.*`, "Whole Foods", domain.CategoryGroceries),
	mustRule(`^TRADER\s*JOE.*`, "Trader Joe's", domain.CategoryGroceries),
	mustRule(`^KROGER\s*\*?.*`, "Kroger", domain.CategoryGroceries),
	mustRule(`^SAFEWAY\s*\*?.*`, "Safeway", domain.CategoryGroceries),
	mustRule(`^PUBLIX\s*\*?.*`, "Publix", domain.CategoryGroceries),
	mustRule(`^STARBUCKS\s*\*?.*|^STARBUCKS STORE.*`, "Starbucks", domain.CategoryDining),
	mustRule(`^MCDONALDS\s*\*?.*|^MCDONALD'S.*`, "McDonald's", domain.CategoryDining),
	mustRule(`^CHICK-FIL-A\s*\*?.*|^CHICKFILA.*`, "Chick-fil-A", domain.CategoryDining),
	mustRule(`^CHIPOTLE\s*\*?.*`, "Chipotle", domain.CategoryDining),
	mustRule(`^SHELL\s*OIL.*|^SHELL\s+SERVICE.*`, "Shell", domain.CategoryGas),
	mustRule(`^CHEVRON\s*\*?.*`, "Chevron", domain.CategoryGas),
	mustRule(`^EXXON\s*\*?.*|^EXXONMOBIL.*`, "Exxon", domain.CategoryGas),
	mustRule(`^BP\s*\*?.*|^BP\s+#\d+.*`, "BP", domain.CategoryGas),
	mustRule(`^CVS\s*\*?.*|^CVS/PHARM.*`, "CVS", domain.CategoryHealthcare),
	mustRule(`^WALGREENS\s*\*?.*`, "Walgreens", domain.CategoryHealthcare),
	mustRule(`^ATM\s*WITHDRAWAL.*|^ATM\s+.*`, "ATM Withdrawal", domain.CategoryCash),
	mustRule(`^CHECK\s*\d+.*`, "Check", domain.CategoryTransfer),
}

var (
	trailingStoreNumber = regexp.MustCompile(`\s*#?\d+\s*$`)
	multiSpace          = regexp.MustCompile(`\s+`)
	captureRef          = regexp.MustCompile(`\$1`)
)

// Normalize maps a raw merchant string to a canonical name, a suggested
// category (empty when none), and a confidence tier. It is a pure function
// and never fails: empty input yields ("Unknown", "", 0.0).
func Normalize(raw string) (name string, category domain.Category, confidence float64) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Unknown", "", 0.0
	}

	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		canonical := r.canonical
		if captureRef.MatchString(canonical) && len(m) > 1 {
			canonical = strings.ReplaceAll(canonical, "$1", titleCase(strings.TrimSpace(m[1])))
		}
		return canonical, r.category, ConfidenceRule
	}

	cleaned := trailingStoreNumber.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(multiSpace.ReplaceAllString(cleaned, " "))
	if cleaned != raw && cleaned != "" {
		return titleCase(cleaned), "", ConfidenceCleanup
	}

	return titleCase(raw), "", ConfidenceRaw
}

// titleCase upper-cases the first letter of each space-separated word and
// lower-cases the rest, which is enough for merchant display names.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
