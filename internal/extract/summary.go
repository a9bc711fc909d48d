package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/model"
)

const (
	// DefaultPreviewChars bounds the text sent for structural summarization.
	DefaultPreviewChars = 3200
	maxKeySections      = 10
)

var (
	monthYearPattern = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}`)
	fullDatePattern  = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
)

// StructuralSummary asks the model to describe the statement's layout
// before any transactions are extracted. Failures are the caller's to
// absorb; the summary is advisory and never blocks the pipeline.
func StructuralSummary(ctx context.Context, caller model.Caller, identity Identity, fullText string) (domain.StructuralSummary, error) {
	preview := fullText
	if len(preview) > DefaultPreviewChars {
		preview = preview[:DefaultPreviewChars]
	}

	headerSample := identity.HeaderLines
	if len(headerSample) > 3 {
		headerSample = headerSample[:3]
	}

	prompt := "You are a finance document analyst. Summarize the structure of the" +
		" provided statement without extracting transactions yet." +
		"\n- Identify the billing period or date range." +
		"\n- List the major sections you observe in order." +
		"\n- Mention the document type you believe it is." +
		"\nRespond in concise bullet points so a user can consent to extraction." +
		"\n\nContext:" +
		fmt.Sprintf("\n- Filename: %s", identity.Filename) +
		fmt.Sprintf("\n- Pages: %d", identity.Pages) +
		fmt.Sprintf("\n- Statement type guess: %s", identity.StatementType) +
		fmt.Sprintf("\n- Header lines: %v", headerSample) +
		"\n\nPreview:" +
		fmt.Sprintf("\n%s", preview)

	text, err := caller.Call(ctx, prompt)
	if err != nil {
		return domain.StructuralSummary{}, fmt.Errorf("structural summary: %w", err)
	}

	return domain.StructuralSummary{
		Synopsis:    strings.TrimSpace(text),
		KeySections: extractBullets(text),
		Timeframe:   extractTimeframe(text),
	}, nil
}

func extractBullets(text string) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.Trim(line, " -•\t")
		if stripped == "" {
			continue
		}
		bullets = append(bullets, stripped)
		if len(bullets) == maxKeySections {
			break
		}
	}
	return bullets
}

func extractTimeframe(text string) string {
	if m := monthYearPattern.FindString(text); m != "" {
		return m
	}
	return fullDatePattern.FindString(text)
}
