package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"connkit/internal/credential"
	"connkit/internal/schema"
	"connkit/internal/types"
)

// RetryBackoff is the pause between attempts, multiplied by the attempt
// number.
var RetryBackoff = 100 * time.Millisecond

// Retry calls fn until it succeeds, attempts are used up or ctx is done.
// The last error is returned.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * RetryBackoff):
		}
	}
	return err
}

// Pager describes a paginated listing. Each page is one full pass of the
// executor state machine.
type Pager struct {
	// Page returns the operation for a page token; "" is the first page.
	Page func(token string) *Operation
	// Next extracts the next page token from a page payload.
	Next func(payload map[string]any) string
	// Merge folds page into acc. The first page becomes acc unchanged.
	Merge func(acc, page *types.ExecutionResult)
	// MaxPages bounds the number of passes. Zero means one page.
	MaxPages int
}

// TruncatedKey is set in the payload when more pages remained.
const TruncatedKey = "truncated"

// Paginate runs p until no next token remains or MaxPages is reached and
// emits one merged result. A failed page fails the whole listing.
func (e *Executor) Paginate(ctx context.Context, connector string, p Pager, values schema.Values, cred *credential.Credential) *types.ExecutionResult {
	maxPages := p.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	first := p.Page("")
	ctx, x := e.begin(ctx, connector, first.Schema, values, cred)

	var acc *types.ExecutionResult
	token := ""
	pages := 0
	for pages < maxPages {
		op := first
		if pages > 0 {
			op = p.Page(token)
		}
		_, px := e.begin(ctx, connector, op.Schema, values, cred)
		px.log = x.log.With(zap.Int("page", pages+1))
		e.run(ctx, px, op, values, cred)
		pages++

		page := px.result
		if page.Outcome != types.OutcomeSuccess {
			page.ID = x.result.ID
			page.Diagnostics.Response["Pages"] = pages
			x.result = page
			return e.emit(x)
		}

		token = ""
		if p.Next != nil {
			token = p.Next(page.Payload)
		}
		if acc == nil {
			acc = page
		} else if p.Merge != nil {
			p.Merge(acc, page)
		}
		if token == "" {
			break
		}
	}

	acc.ID = x.result.ID
	acc.StartedAt = x.result.StartedAt
	acc.Diagnostics.Response["Pages"] = pages
	if token != "" {
		acc.Payload[TruncatedKey] = true
	} else {
		acc.Payload[TruncatedKey] = false
	}
	x.result = acc
	return e.emit(x)
}
