package domain

// Transaction is one normalized financial movement extracted from a
// statement. Amounts follow the expense-positive convention: a positive
// amount is money spent, a negative amount is money received.
type Transaction struct {
	Date        string   `json:"date"`
	Merchant    string   `json:"merchant"`
	RawMerchant string   `json:"raw_merchant,omitempty"`
	Amount      float64  `json:"amount"`
	Category    Category `json:"category"`
	RawLine     string   `json:"raw_line,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// Extraction methods reported on ExtractionResult.
const (
	MethodPattern            = "pattern"
	MethodGenerativeFallback = "generative_fallback"
	MethodCached             = "cached"
)

// StructuralSummary is the model's pre-extraction description of the
// document layout. All fields may be empty when the summary call failed;
// that failure is never fatal.
type StructuralSummary struct {
	Synopsis    string   `json:"synopsis,omitempty"`
	KeySections []string `json:"key_sections,omitempty"`
	Timeframe   string   `json:"timeframe,omitempty"`
}

// ExtractionResult is the single object a caller needs to render or
// persist after processing one document.
type ExtractionResult struct {
	DocID              string             `json:"doc_id"`
	Method             string             `json:"method"`
	Transactions       []Transaction      `json:"transactions"`
	Analysis           *AnalysisResult    `json:"analysis,omitempty"`
	Summary            *StructuralSummary `json:"summary,omitempty"`
	RawModelResponse   string             `json:"raw_model_response,omitempty"`
	ValidationWarnings []string           `json:"validation_warnings,omitempty"`

	// DroppedCandidates counts deterministic matches discarded for
	// malformed amounts; SkippedChunks counts generative chunks whose
	// responses could not be parsed. Both are observability counters
	// for the silent-skip policy, not errors.
	DroppedCandidates int `json:"dropped_candidates,omitempty"`
	SkippedChunks     int `json:"skipped_chunks,omitempty"`
}
