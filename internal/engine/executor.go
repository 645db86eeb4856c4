// Package engine runs connector operations: validate, request, normalize,
// classify, with diagnostics captured on every path.
package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"connkit/internal/credential"
	"connkit/internal/errors"
	"connkit/internal/logger"
	"connkit/internal/metrics"
	"connkit/internal/normalize"
	"connkit/internal/request"
	"connkit/internal/schema"
	"connkit/internal/types"
)

const (
	// DefaultMaxRetries bounds the request loop of one execution.
	DefaultMaxRetries = 3
	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes = 10 << 20
)

// Default error titles.
const (
	TitleTransport     = "Something went wrong"
	TitleRemote        = "Received an error Response"
	TitleConfiguration = "Invalid configuration"
	TitleNormalization = "Unable to process response"
	TitleRefresh       = "Unable to refresh credential"
)

// Operation is one remote call of a connector.
type Operation struct {
	Connector string
	// Schema validates the values before anything is sent. May be nil.
	Schema  *schema.Schema
	Request *request.Builder
	// Normalize maps a 2xx response. Defaults to normalize.JSON.
	Normalize normalize.Func
	// Detect finds provider errors embedded in 2xx bodies.
	Detect normalize.Detector
	// OnRemote overrides the error for status >= 400 when it returns non-nil.
	OnRemote func(resp *normalize.Response) *errors.Error
	// TransportTitle overrides the title of transport failures.
	TransportTitle string
	// Diagnostics adds connector-specific entries to the request bucket.
	// Its output is masked like the rest of the diagnostics.
	Diagnostics func(values schema.Values, cred *credential.Credential) map[string]any
}

// LocalOperation is a connector action that makes no HTTP call of its own.
type LocalOperation struct {
	Connector   string
	Schema      *schema.Schema
	Diagnostics func(values schema.Values, cred *credential.Credential) map[string]any
	Run         func(ctx context.Context, values schema.Values, cred *credential.Credential) (payload, diag map[string]any, err error)
}

// Executor runs operations. The zero value is usable; fields are read at
// call time.
type Executor struct {
	Client    *http.Client
	Refresher credential.Refresher
	Logger    *zap.Logger
	Limiter   *rate.Limiter
	Observer  Observer

	MaxRetries   int
	Timeout      time.Duration
	MaxBodyBytes int64
}

// NewExecutor creates an executor with default limits.
func NewExecutor(client *http.Client, refresher credential.Refresher, log *zap.Logger) *Executor {
	return &Executor{
		Client:       client,
		Refresher:    refresher,
		Logger:       log,
		MaxRetries:   DefaultMaxRetries,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// execution is the state of one invocation.
type execution struct {
	machine *Machine
	masker  *credential.Masker
	log     *zap.Logger
	result  *types.ExecutionResult
	start   time.Time
}

func (e *Executor) begin(ctx context.Context, connector string, s *schema.Schema, values schema.Values, cred *credential.Credential) (context.Context, *execution) {
	id := uuid.NewString()
	ctx = logger.ContextWith(ctx, id, connector)

	base := e.Logger
	if base == nil {
		base = logger.WithContext(ctx)
	} else {
		base = base.With(zap.String("execution_id", id), zap.String("connector", connector))
	}

	masker := credential.NewMasker(cred.Secrets()...)
	if s != nil {
		for _, key := range s.SensitiveKeys() {
			masker.Add(values.String(key))
		}
	}

	x := &execution{
		masker: masker,
		log:    base,
		start:  time.Now(),
		result: &types.ExecutionResult{
			ID:          id,
			Connector:   connector,
			Diagnostics: types.NewDiagnostics(),
		},
	}
	if cred != nil {
		x.result.Connection = cred.Connection
	}
	x.result.StartedAt = x.start.UTC()
	x.machine = NewMachine(id, func(execID string, from, to State) {
		base.Debug("transition", zap.Stringer("from", from), zap.Stringer("to", to))
		if e.Observer != nil {
			e.Observer(execID, from, to)
		}
	})
	return ctx, x
}

// to moves the machine. An illegal move is a programming error in the
// executor and fails the execution.
func (x *execution) to(s State) bool {
	if err := x.machine.To(s); err != nil {
		x.log.Error("state machine", zap.Error(err), zap.Stringers("history", x.machine.History()))
		x.fail(errors.Wrap(err, errors.KindConfiguration, "internal state error"))
		return false
	}
	return true
}

func (x *execution) fail(err error) *types.ExecutionResult {
	if x.machine.State().Terminal() {
		return x.result
	}
	e, ok := errors.As(err)
	if !ok {
		e = errors.Wrap(err, errors.KindRemote, err.Error())
	}
	x.machine.Fail()

	r := x.result
	r.Outcome = types.OutcomeError
	r.ErrorKind = string(e.Kind)
	r.ErrorTitle = x.masker.String(titleFor(e))
	r.ErrorMessage = x.masker.String(e.Message)
	if len(e.Details) > 0 {
		r.ErrorDetails, _ = x.masker.Value(e.Details).(map[string]any)
	}
	return r
}

func (x *execution) succeed(payload map[string]any) *types.ExecutionResult {
	if !x.to(StateSucceeded) {
		return x.result
	}
	if payload == nil {
		payload = map[string]any{}
	}
	x.result.Outcome = types.OutcomeSuccess
	x.result.Payload = payload
	return x.result
}

func titleFor(e *errors.Error) string {
	if e.Title != "" {
		return e.Title
	}
	switch e.Kind {
	case errors.KindTransport:
		return TitleTransport
	case errors.KindConfiguration, errors.KindValidation, errors.KindSchema:
		return TitleConfiguration
	case errors.KindNormalization, errors.KindMalformedGeometry:
		return TitleNormalization
	default:
		return TitleRemote
	}
}

// emit finalizes timing, records metrics and logs the outcome. It is
// called exactly once per public invocation.
func (e *Executor) emit(x *execution) *types.ExecutionResult {
	elapsed := time.Since(x.start)
	r := x.result
	r.Diagnostics.ExecutionTimeMillis = elapsed.Milliseconds()

	metrics.ObserveExecution(r.Connector, string(r.Outcome), r.ErrorKind, elapsed)
	fields := []zap.Field{
		zap.String("outcome", string(r.Outcome)),
		zap.Int64("elapsed_ms", r.Diagnostics.ExecutionTimeMillis),
	}
	if r.Succeeded() {
		x.log.Info("execution finished", fields...)
		return r
	}
	fields = append(fields,
		zap.String("kind", r.ErrorKind),
		zap.String("title", r.ErrorTitle),
		zap.String("message", r.ErrorMessage),
	)
	x.log.Warn("execution failed", fields...)
	return r
}

// Execute runs op against values and cred and returns its single result.
func (e *Executor) Execute(ctx context.Context, op *Operation, values schema.Values, cred *credential.Credential) *types.ExecutionResult {
	ctx, x := e.begin(ctx, op.Connector, op.Schema, values, cred)
	e.run(ctx, x, op, values, cred)
	return e.emit(x)
}

func (e *Executor) run(ctx context.Context, x *execution, op *Operation, values schema.Values, cred *credential.Credential) {
	if !x.to(StateValidating) {
		return
	}
	if op.Diagnostics != nil {
		mergeInto(x.result.Diagnostics.Request, x.masker.Value(op.Diagnostics(values, cred)))
	}
	if op.Request == nil {
		x.fail(errors.New(errors.KindConfiguration, "operation has no request template"))
		return
	}
	req, err := op.Request.Build(ctx, op.Schema, values, cred)
	if err != nil {
		x.fail(configurationError(err))
		return
	}
	for k, v := range req.Diagnostic() {
		x.result.Diagnostics.Request[k] = x.masker.Value(v)
	}

	if !x.to(StateRequesting) {
		return
	}
	resp, err := e.send(ctx, x, op, req, cred)
	if err != nil {
		x.fail(err)
		return
	}

	respDiag := x.result.Diagnostics.Response
	if resp.StatusCode >= 400 {
		respDiag["Status Code"] = resp.StatusCode
		respDiag[normalize.RawResponseKey] = x.masker.String(string(resp.Body))
		x.fail(remoteError(op, resp))
		return
	}
	if op.Detect != nil {
		if perr := op.Detect(resp); perr != nil {
			respDiag[normalize.RawResponseKey] = x.masker.String(string(resp.Body))
			x.fail(perr.WithStatus(resp.StatusCode))
			return
		}
	}

	if !x.to(StateNormalizing) {
		return
	}
	norm := op.Normalize
	if norm == nil {
		norm = normalize.JSON
	}
	payload, diag, err := norm(resp)
	mergeInto(respDiag, x.masker.Value(diag))
	if err != nil {
		respDiag[normalize.RawResponseKey] = x.masker.String(string(resp.Body))
		x.fail(normalizationError(err))
		return
	}
	masked, _ := x.masker.Value(payload).(map[string]any)
	x.succeed(masked)
}

// send performs the request loop. A 401 on a bearer request triggers at
// most one refresh and retry.
func (e *Executor) send(ctx context.Context, x *execution, op *Operation, req *request.Request, cred *credential.Credential) (*normalize.Response, error) {
	maxAttempts := e.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}

	refreshed := false
	for attempt := 1; ; attempt++ {
		resp, err := e.do(ctx, op.Connector, req)
		if _, typed := errors.As(err); typed {
			return nil, err
		}
		if err != nil {
			te := errors.New(errors.KindTransport, x.masker.String(err.Error()))
			if op.TransportTitle != "" {
				te.WithTitle(op.TransportTitle)
			}
			return nil, te
		}
		x.log.Debug("response received",
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.String("url", x.masker.String(req.URL.String())),
		)

		if resp.StatusCode != http.StatusUnauthorized || !req.Bearer() || refreshed || attempt >= maxAttempts {
			return resp, nil
		}
		if e.Refresher == nil || cred == nil {
			return resp, nil
		}

		expired := errors.New(errors.KindCredentialExpired, "access token was rejected").WithStatus(resp.StatusCode)
		x.log.Info("credential expired, requesting refresh", zap.String("connection", cred.Connection))
		rerr := e.Refresher.Refresh(ctx, cred.Connection, expired)
		metrics.ObserveRefresh(op.Connector, rerr)
		if rerr != nil {
			x.result.Diagnostics.Response["Status Code"] = resp.StatusCode
			return nil, errors.Wrap(expired, errors.KindRemote, x.masker.String(rerr.Error())).
				WithTitle(TitleRefresh).
				WithStatus(resp.StatusCode)
		}
		refreshed = true
		if !x.to(StateRequesting) {
			return nil, errors.New(errors.KindConfiguration, "internal state error")
		}
	}
}

// do sends req once and reads the body under the size cap. The body is
// closed on every path.
func (e *Executor) do(ctx context.Context, connector string, req *request.Request) (*normalize.Response, error) {
	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		metrics.ObserveHTTP(connector, 0)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.ObserveHTTP(connector, resp.StatusCode)

	limit := e.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return &normalize.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// RunLocal runs op through the same state machine as Execute. The Run
// function stands in for the remote call.
func (e *Executor) RunLocal(ctx context.Context, op *LocalOperation, values schema.Values, cred *credential.Credential) *types.ExecutionResult {
	ctx, x := e.begin(ctx, op.Connector, op.Schema, values, cred)
	e.runLocal(ctx, x, op, values, cred)
	return e.emit(x)
}

func (e *Executor) runLocal(ctx context.Context, x *execution, op *LocalOperation, values schema.Values, cred *credential.Credential) {
	if !x.to(StateValidating) {
		return
	}
	if op.Diagnostics != nil {
		mergeInto(x.result.Diagnostics.Request, x.masker.Value(op.Diagnostics(values, cred)))
	}
	if op.Schema != nil {
		if err := op.Schema.Validate(values); err != nil {
			x.fail(configurationError(err))
			return
		}
	}
	if !x.to(StateRequesting) {
		return
	}
	payload, diag, err := op.Run(ctx, values, cred)
	mergeInto(x.result.Diagnostics.Response, x.masker.Value(diag))
	if err != nil {
		if _, typed := errors.As(err); !typed {
			err = errors.Wrap(err, errors.KindRemote, err.Error()).WithTitle(TitleTransport)
		}
		x.fail(err)
		return
	}
	if !x.to(StateNormalizing) {
		return
	}
	masked, _ := x.masker.Value(payload).(map[string]any)
	x.succeed(masked)
}

// Reject emits a failed result for an execution that could not be set up,
// for example because its schema failed to build.
func (e *Executor) Reject(ctx context.Context, connector string, cred *credential.Credential, err error) *types.ExecutionResult {
	_, x := e.begin(ctx, connector, nil, nil, cred)
	if x.to(StateValidating) {
		x.fail(configurationError(err))
	}
	return e.emit(x)
}

func configurationError(err error) error {
	if ve, ok := err.(*errors.ValidationError); ok {
		return errors.Wrap(ve, errors.KindConfiguration, ve.Error()).
			WithTitle(TitleConfiguration).
			WithDetail("fields", ve.Messages())
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.Wrap(err, errors.KindConfiguration, err.Error())
}

func remoteError(op *Operation, resp *normalize.Response) *errors.Error {
	if op.OnRemote != nil {
		if e := op.OnRemote(resp); e != nil {
			return e.WithStatus(resp.StatusCode)
		}
	}
	return errors.Newf(errors.KindRemote, "Status Code: %d", resp.StatusCode).
		WithTitle(TitleRemote).
		WithStatus(resp.StatusCode)
}

func normalizationError(err error) *errors.Error {
	if e, ok := errors.As(err); ok && e.Kind == errors.KindNormalization {
		return e
	}
	return errors.Wrap(err, errors.KindNormalization, err.Error()).WithTitle(TitleNormalization)
}

func mergeInto(dst map[string]any, src any) {
	m, ok := src.(map[string]any)
	if !ok {
		return
	}
	for k, v := range m {
		dst[k] = v
	}
}
