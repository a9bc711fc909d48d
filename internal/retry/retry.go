// Package retry drives repeated generative-model attempts, feeding each
// failure back into the next prompt as a correction block. Showing the
// model its own invalid response corrects it faster than re-describing the
// task from scratch, so the retry prompt is information-preserving.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-extractor/internal/logger"
	"github.com/dvloznov/statement-extractor/internal/model"
	"github.com/dvloznov/statement-extractor/internal/schema"
)

// Failure kinds reported to the caller for observability. A timeout is
// retried exactly like a validation failure but reported distinctly.
const (
	KindValidationFailed = "validation_failed"
	KindTimeout          = "timeout"
	KindTransport        = "transport"
)

const (
	// DefaultMaxAttempts bounds the retry loop.
	DefaultMaxAttempts = 3
	// previousResponseLimit truncates the echoed prior response.
	previousResponseLimit = 1000
)

// Validator checks a raw model response. A nil error means the response is
// accepted; warnings are soft findings carried alongside success.
type Validator func(raw string) (warnings []string, err error)

// Config tunes one retry loop.
type Config struct {
	MaxAttempts             int
	IncludeErrorFeedback    bool
	IncludePreviousResponse bool
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:             DefaultMaxAttempts,
		IncludeErrorFeedback:    true,
		IncludePreviousResponse: true,
	}
}

// Context is the state threaded through one retry loop. It is created
// fresh per invocation and discarded when the loop terminates.
type Context struct {
	Attempt          int // 1-based
	PreviousResponse string
	PreviousErrors   []string
	FeedbackPrompt   string
}

// Result reports a successful loop: the accepted response, how many model
// calls it took, and any soft warnings from the accepting validation.
type Result struct {
	Response string
	Attempts int
	Warnings []string
}

// ExhaustedError is returned when every attempt failed. Kind is the
// failure class of the final attempt; Err is its underlying error.
type ExhaustedError struct {
	Attempts int
	Kind     string
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Controller runs prompts against a model with validation-driven retry.
type Controller struct {
	caller model.Caller
	cfg    Config
}

// NewController builds a Controller around the given caller.
func NewController(caller model.Caller, cfg Config) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Controller{caller: caller, cfg: cfg}
}

// RunWithRetry sends basePrompt, validating each response with validate
// (nil validate accepts the first transport success). Each failed attempt
// appends a correction block to the original prompt. After MaxAttempts
// failures the last error is surfaced as *ExhaustedError.
func (c *Controller) RunWithRetry(ctx context.Context, basePrompt string, validate Validator) (Result, error) {
	log := logger.FromContext(ctx)

	rctx := Context{Attempt: 1}
	var lastErr error
	lastKind := KindValidationFailed

	for rctx.Attempt <= c.cfg.MaxAttempts {
		prompt := buildRetryPrompt(basePrompt, rctx, c.cfg)

		response, err := c.caller.Call(ctx, prompt)
		if err != nil {
			lastErr = err
			lastKind = KindTransport
			if model.IsTimeout(err) {
				lastKind = KindTimeout
			}
			log.Warn().Err(err).Int("attempt", rctx.Attempt).Str("kind", lastKind).
				Msg("model call failed")

			rctx = Context{
				Attempt:        rctx.Attempt + 1,
				PreviousErrors: []string{err.Error()},
			}
			continue
		}

		if validate == nil {
			return Result{Response: response, Attempts: rctx.Attempt}, nil
		}

		warnings, verr := validate(response)
		if verr == nil {
			return Result{Response: response, Attempts: rctx.Attempt, Warnings: warnings}, nil
		}

		lastErr = verr
		lastKind = KindValidationFailed
		log.Warn().Err(verr).Int("attempt", rctx.Attempt).Msg("response failed validation")

		next := Context{
			Attempt:          rctx.Attempt + 1,
			PreviousResponse: truncate(response, previousResponseLimit),
		}
		var sverr *schema.ValidationError
		if errors.As(verr, &sverr) {
			next.PreviousErrors = sverr.Errors
			next.FeedbackPrompt = sverr.Feedback
		} else {
			next.PreviousErrors = []string{verr.Error()}
			next.FeedbackPrompt = verr.Error()
		}
		rctx = next
	}

	return Result{}, &ExhaustedError{Attempts: c.cfg.MaxAttempts, Kind: lastKind, Err: lastErr}
}

// buildRetryPrompt appends the correction block, the truncated previous
// response, and the attempt counter to the original prompt. The first
// attempt gets the bare prompt (plus the counter for attempt visibility
// only when retrying).
func buildRetryPrompt(original string, rctx Context, cfg Config) string {
	if rctx.Attempt == 1 {
		return original
	}

	parts := []string{original}

	if cfg.IncludeErrorFeedback && rctx.FeedbackPrompt != "" {
		parts = append(parts, "\n\n--- CORRECTION REQUIRED ---", rctx.FeedbackPrompt)
	}
	if cfg.IncludePreviousResponse && rctx.PreviousResponse != "" {
		parts = append(parts, fmt.Sprintf("\n\nYour previous (invalid) response was:\n%s", rctx.PreviousResponse))
	}
	parts = append(parts, fmt.Sprintf("\n\n(Attempt %d of %d)", rctx.Attempt, cfg.MaxAttempts))

	return strings.Join(parts, "\n")
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
