package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/domain"
	"github.com/dvloznov/statement-extractor/internal/model"
	"github.com/dvloznov/statement-extractor/internal/retry"
)

const appleCardText = `Apple Card
Goldman Sachs Bank USA
Statement

01/15/2024 STARBUCKS STORE #123 $4.50
01/16/2024 SHELL OIL 76 $40.00`

func TestDetectStatementType(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		text   string
		want   string
	}{
		{"apple card", []string{"Apple Card", "Statement"}, "", StatementAppleCard},
		{"goldman", []string{"Goldman Sachs Bank"}, "", StatementAppleCard},
		{"chase", []string{"CHASE Freedom Statement"}, "", StatementChase},
		{"boa", []string{"Bank of America"}, "", StatementBoA},
		{"amex", []string{"American Express"}, "", StatementAmex},
		{"wells", []string{"Wells Fargo Checking"}, "", StatementWells},
		{"citi", []string{"Citi Double Cash"}, "", StatementCiti},
		{"generic", []string{"Monthly Account Statement"}, "", StatementGeneric},
		{"apple in body", []string{"hello"}, "purchased from APPLE store", StatementAppleCard},
		{"unknown", []string{"hello"}, "nothing here", StatementUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectStatementType(tt.header, tt.text))
		})
	}
}

func TestBuildIdentity(t *testing.T) {
	header := []string{
		"Apple Card",
		"Account Holder: Jane Doe",
		"Account Number: 4321",
	}
	identity := BuildIdentity("doc-1", "jan.txt", 2, 1024, header, appleCardText)

	assert.Equal(t, StatementAppleCard, identity.StatementType)
	assert.Equal(t, "Jane Doe", identity.AccountHolder)
	assert.Equal(t, "4321", identity.AccountIdentifier)
	assert.Equal(t, "Apple Card", identity.Institution)
}

// Two Apple-Card-style lines yield two deterministic transactions with
// canonicalized merchants and rule-level confidence.
func TestPatternExtractAppleCard(t *testing.T) {
	result := PatternExtract(appleCardText, StatementAppleCard)
	require.Len(t, result.Transactions, 2)
	assert.Zero(t, result.Dropped)

	first := result.Transactions[0]
	assert.Equal(t, "01/15/2024", first.Date)
	assert.Equal(t, "Starbucks", first.Merchant)
	assert.Equal(t, "STARBUCKS STORE #123", first.RawMerchant)
	assert.Equal(t, 4.50, first.Amount)
	assert.Equal(t, domain.CategoryDining, first.Category)
	assert.Equal(t, 0.95, first.Confidence)

	second := result.Transactions[1]
	assert.Equal(t, "Shell", second.Merchant)
	assert.Equal(t, 40.00, second.Amount)
	assert.Equal(t, domain.CategoryGas, second.Category)
}

func TestPatternExtractGeneric(t *testing.T) {
	text := "01/05 GROCERY MART 23.10\n01/06 REFUND CREDIT -5.00"
	result := PatternExtract(text, StatementGeneric)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, 23.10, result.Transactions[0].Amount)
	assert.Equal(t, -5.00, result.Transactions[1].Amount)
}

func TestChunkText(t *testing.T) {
	chunks := chunkText(strings.Repeat("a", 7000), 2800)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2800)
	assert.Len(t, chunks[2], 1400)

	assert.Nil(t, chunkText("", 2800))
}

type fakeCaller struct {
	responses []string
	calls     int
}

func (c *fakeCaller) Call(context.Context, string) (string, error) {
	i := c.calls
	c.calls++
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return "[]", nil
}

var _ model.Caller = (*fakeCaller)(nil)

func newTestExtractor(caller model.Caller) *Extractor {
	retrier := retry.NewController(caller, retry.DefaultConfig())
	return New(retrier, Options{})
}

func TestExtractTransactionsPatternPathSkipsModel(t *testing.T) {
	caller := &fakeCaller{}
	e := newTestExtractor(caller)

	identity := Identity{DocID: "doc-1", StatementType: StatementAppleCard}
	result := e.ExtractTransactions(context.Background(), identity, appleCardText)

	assert.Equal(t, domain.MethodPattern, result.Method)
	assert.Len(t, result.Transactions, 2)
	assert.Zero(t, caller.calls, "pattern path must not call the model")
}

func TestExtractTransactionsGenerativeFallback(t *testing.T) {
	caller := &fakeCaller{responses: []string{
		`[{"date": "01/20/2024", "merchant": "Corner Cafe", "amount": 12.00, "category": "dining"}]`,
	}}
	e := newTestExtractor(caller)

	identity := Identity{DocID: "doc-2", Filename: "doc.txt", StatementType: StatementUnknown}
	result := e.ExtractTransactions(context.Background(), identity, "free-form text with no tabular lines")

	assert.Equal(t, domain.MethodGenerativeFallback, result.Method)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "Corner Cafe", result.Transactions[0].Merchant)
	assert.Equal(t, 1, caller.calls)
}

func TestExtractTransactionsBadChunkSkipped(t *testing.T) {
	// Every response is invalid, so the single chunk exhausts its retries
	// and is skipped. No transactions, one skipped chunk.
	caller := &fakeCaller{responses: []string{"garbage", "garbage", "garbage"}}
	e := newTestExtractor(caller)

	identity := Identity{DocID: "doc-3", StatementType: StatementUnknown}
	result := e.ExtractTransactions(context.Background(), identity, "no transactions here")

	assert.Equal(t, domain.MethodGenerativeFallback, result.Method)
	assert.Empty(t, result.Transactions)
	assert.Equal(t, 1, result.SkippedChunks)
	assert.Equal(t, 3, caller.calls)
}
