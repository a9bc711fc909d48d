// Package schema parses and validates model output against the two target
// payload shapes: a transaction list and an aggregate analysis. Validation
// failures carry both field-level errors and a synthesized feedback block
// the retry controller can append to the next prompt.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/sanitize"
)

const (
	maxMerchantLen = 500
	amountBound    = 1_000_000
	maxRawEcho     = 500

	// categorySumTolerance is the absolute slack allowed between
	// total_spent and the sum of by_category before a warning fires.
	categorySumTolerance = 1.0
)

// ValidationError reports why a payload was rejected. Errors is ordered by
// field position; Feedback is a natural-language correction block for the
// retry prompt.
type ValidationError struct {
	Message     string
	Errors      []string
	RawResponse string
	Feedback    string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	n := len(e.Errors)
	if n > 5 {
		n = 5
	}
	return fmt.Sprintf("%s:\n  - %s", e.Message, strings.Join(e.Errors[:n], "\n  - "))
}

func newValidationError(message string, errs []string, raw string) *ValidationError {
	feedback := "Your previous response had validation errors:\n"
	n := len(errs)
	if n > 3 {
		n = 3
	}
	for _, e := range errs[:n] {
		feedback += "- " + e + "\n"
	}
	feedback += "\nPlease fix these issues and respond with valid JSON."

	return &ValidationError{
		Message:     message,
		Errors:      errs,
		RawResponse: truncate(raw, maxRawEcho),
		Feedback:    feedback,
	}
}

func locateAndParse(raw string) (interface{}, *ValidationError) {
	payload, err := sanitize.Locate(raw)
	if err != nil {
		locErr, ok := err.(*sanitize.LocateError)
		feedback := ""
		if ok {
			feedback = locErr.Feedback
		}
		return nil, &ValidationError{
			Message:     err.Error(),
			Errors:      []string{err.Error()},
			RawResponse: truncate(raw, maxRawEcho),
			Feedback:    feedback,
		}
	}

	payload = sanitize.Repair(payload)

	var parsed interface{}
	if jsonErr := json.Unmarshal([]byte(payload), &parsed); jsonErr != nil {
		return nil, &ValidationError{
			Message:     "invalid JSON in model response",
			Errors:      []string{fmt.Sprintf("JSON parse error: %v", jsonErr)},
			RawResponse: truncate(raw, maxRawEcho),
			Feedback: fmt.Sprintf(
				"Your previous response contained invalid JSON: %v. Please respond with valid JSON only.", jsonErr),
		}
	}
	return parsed, nil
}

// ValidateTransactions parses raw model output into a normalized
// transaction list. A bare JSON array and a {"transactions": [...]}
// wrapper are accepted interchangeably. Returns the list, soft warnings,
// and a *ValidationError when any transaction fails a field rule.
func ValidateTransactions(raw string) ([]domain.Transaction, []string, error) {
	parsed, verr := locateAndParse(raw)
	if verr != nil {
		return nil, nil, verr
	}

	var items []interface{}
	switch v := parsed.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		inner, ok := v["transactions"]
		if !ok {
			return nil, nil, newValidationError(
				"transaction validation failed",
				[]string{`response object has no "transactions" field`}, raw)
		}
		items, ok = inner.([]interface{})
		if !ok {
			return nil, nil, newValidationError(
				"transaction validation failed",
				[]string{fmt.Sprintf(`"transactions" is %T, want array`, inner)}, raw)
		}
	default:
		return nil, nil, newValidationError(
			"transaction validation failed",
			[]string{fmt.Sprintf("response is %T, want array or object", parsed)}, raw)
	}

	var (
		txs       []domain.Transaction
		fieldErrs []string
		warnings  []string
	)

	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			fieldErrs = append(fieldErrs, fmt.Sprintf("transactions.%d: element is %T, want object", i, item))
			continue
		}
		tx, errs := validateTransaction(obj)
		if len(errs) > 0 {
			for _, e := range errs {
				fieldErrs = append(fieldErrs, fmt.Sprintf("transactions.%d: %s", i, e))
			}
			continue
		}
		txs = append(txs, tx)
	}

	if len(fieldErrs) > 0 {
		return nil, nil, newValidationError("transaction validation failed", fieldErrs, raw)
	}

	if len(txs) == 0 {
		warnings = append(warnings, "no transactions found in response")
	}
	return txs, warnings, nil
}

// validateTransaction applies the field-level rules to one raw object.
// Category normalization never contributes an error: it only normalizes.
func validateTransaction(obj map[string]interface{}) (domain.Transaction, []string) {
	var errs []string
	var tx domain.Transaction

	date, err := getStringField(obj, "date", true)
	if err != nil {
		errs = append(errs, err.Error())
	} else {
		date = strings.TrimSpace(date)
		if !ValidDate(date) {
			errs = append(errs, fmt.Sprintf("invalid date format: %q, expected MM/DD/YYYY or YYYY-MM-DD", date))
		} else {
			tx.Date = date
		}
	}

	merchant, err := getStringField(obj, "merchant", false)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if strings.TrimSpace(merchant) == "" {
		// Some models report the merchant under description or name.
		merchant, _ = getStringField(obj, "description", false)
		if strings.TrimSpace(merchant) == "" {
			merchant, _ = getStringField(obj, "name", false)
		}
	}
	merchant = strings.Join(strings.Fields(merchant), " ")
	if merchant == "" {
		errs = append(errs, "merchant cannot be empty")
	} else {
		tx.Merchant = truncate(merchant, maxMerchantLen)
	}

	amount, present, err := getNumberField(obj, "amount", true)
	switch {
	case err != nil:
		errs = append(errs, err.Error())
	case present && (amount < -amountBound || amount > amountBound):
		errs = append(errs, fmt.Sprintf("amount %v is outside reasonable bounds (-1M to 1M)", amount))
	default:
		tx.Amount = round2(amount)
	}

	rawCategory, _ := getStringField(obj, "category", false)
	tx.Category = domain.ParseCategory(rawCategory)

	tx.RawLine, _ = getStringField(obj, "raw_line", false)

	if conf, ok, err := getNumberField(obj, "confidence", false); err == nil && ok {
		if conf >= 0 && conf <= 1 {
			tx.Confidence = conf
		}
	}

	return tx, errs
}

// ValidateAnalysis parses raw model output into an AnalysisResult.
// Cross-field inconsistencies become warnings, never hard failures.
func ValidateAnalysis(raw string) (*domain.AnalysisResult, []string, error) {
	parsed, verr := locateAndParse(raw)
	if verr != nil {
		return nil, nil, verr
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, nil, newValidationError(
			"analysis validation failed",
			[]string{fmt.Sprintf("response is %T, want object", parsed)}, raw)
	}

	// Narrative responses arrive wrapped as {"analysis": {...}}.
	if inner, ok := obj["analysis"].(map[string]interface{}); ok {
		obj = inner
	}

	var warnings []string
	result := &domain.AnalysisResult{
		Currency:   "USD",
		ByCategory: map[domain.Category]float64{},
	}

	result.DocID, _ = getStringField(obj, "doc_id", false)
	if currency, _ := getStringField(obj, "currency", false); currency != "" {
		result.Currency = strings.ToUpper(strings.TrimSpace(currency))
	}

	if count, ok, err := getNumberField(obj, "transaction_count", false); err == nil && ok && count >= 0 {
		result.TransactionCount = int(count)
	}

	total, ok, err := getNumberField(obj, "total_spent", false)
	if !ok || err != nil {
		total, ok, err = getNumberField(obj, "total", false)
	}
	if ok && err == nil {
		result.TotalSpent = round2(math.Abs(total))
	}

	if byCat, ok := obj["by_category"].(map[string]interface{}); ok {
		for k, v := range byCat {
			amount, err := coerceNumber(v)
			if err != nil {
				continue
			}
			result.ByCategory[domain.ParseCategory(k)] += round2(amount)
		}
	}

	result.TopMerchants = parseTopMerchants(obj["top_merchants"])

	if dr, ok := obj["date_range"].(map[string]interface{}); ok {
		start, _ := getStringField(dr, "start", false)
		end, _ := getStringField(dr, "end", false)
		if start != "" || end != "" {
			result.DateRange = &domain.DateRange{Start: start, End: end}
		}
	}

	result.Insights = getStringList(obj, "insights", 10, 200)
	result.Recommendations = getStringList(obj, "recommendations", 10, 200)
	if result.Recommendations == nil {
		result.Recommendations = getStringList(obj, "suggestions", 10, 200)
	}

	if savings, ok, err := getNumberField(obj, "potential_savings", false); err == nil && ok && savings >= 0 {
		result.PotentialSavings = round2(savings)
	}

	if result.TransactionCount > 0 && result.TotalSpent == 0 {
		warnings = append(warnings, "transaction_count > 0 but total_spent is 0")
	}
	if len(result.ByCategory) > 0 {
		var sum float64
		for _, v := range result.ByCategory {
			sum += v
		}
		if math.Abs(sum-result.TotalSpent) > categorySumTolerance {
			warnings = append(warnings,
				fmt.Sprintf("by_category sum (%.2f) != total_spent (%.2f)", sum, result.TotalSpent))
		}
	}

	return result, warnings, nil
}

// parseTopMerchants tolerates the shapes models actually emit: a list of
// {name, total} objects, bare merchant-name strings, or a mix.
func parseTopMerchants(v interface{}) []domain.MerchantTotal {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var out []domain.MerchantTotal
	for _, item := range items {
		switch m := item.(type) {
		case string:
			if s := strings.TrimSpace(m); s != "" {
				out = append(out, domain.MerchantTotal{Name: truncate(s, 100)})
			}
		case map[string]interface{}:
			name, _ := getStringField(m, "name", false)
			name = strings.Join(strings.Fields(name), " ")
			if name == "" {
				continue
			}
			total, _, _ := getNumberField(m, "total", false)
			if total < 0 {
				total = math.Abs(total)
			}
			out = append(out, domain.MerchantTotal{Name: truncate(name, 100), Total: round2(total)})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}
