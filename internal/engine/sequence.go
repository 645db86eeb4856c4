package engine

import (
	"context"

	"go.uber.org/zap"

	"connkit/internal/credential"
	"connkit/internal/errors"
	"connkit/internal/schema"
	"connkit/internal/types"
)

var errNoSteps = errors.New(errors.KindConfiguration, "operation has no steps")

// Step returns the operation to run after a step that produced prev. The
// first step receives nil.
type Step func(ctx context.Context, prev map[string]any) (*Operation, error)

// Sequence runs steps one after another and emits a single result: the
// payload of the last step with the diagnostics of all of them. The first
// failing step ends the sequence.
func (e *Executor) Sequence(ctx context.Context, connector string, values schema.Values, cred *credential.Credential, steps ...Step) *types.ExecutionResult {
	if len(steps) == 0 {
		return e.Reject(ctx, connector, cred, errNoSteps)
	}
	first, err := steps[0](ctx, nil)
	if err != nil {
		return e.Reject(ctx, connector, cred, err)
	}
	ctx, x := e.begin(ctx, connector, first.Schema, values, cred)

	var (
		prev map[string]any
		acc  *types.ExecutionResult
	)
	for i, step := range steps {
		op := first
		if i > 0 {
			if op, err = step(ctx, prev); err != nil {
				x.result.Diagnostics = acc.Diagnostics
				x.to(StateValidating)
				x.fail(configurationError(err))
				return e.emit(x)
			}
		}
		_, sx := e.begin(ctx, connector, op.Schema, values, cred)
		sx.log = x.log.With(zap.Int("step", i+1))
		e.run(ctx, sx, op, values, cred)

		res := sx.result
		if acc != nil {
			mergeInto(acc.Diagnostics.Request, res.Diagnostics.Request)
			mergeInto(acc.Diagnostics.Response, res.Diagnostics.Response)
			res.Diagnostics = acc.Diagnostics
		}
		acc = res
		if res.Outcome != types.OutcomeSuccess {
			break
		}
		prev = res.Payload
	}

	acc.ID = x.result.ID
	acc.StartedAt = x.result.StartedAt
	x.result = acc
	return e.emit(x)
}
