// Package dispatch implements the tool-orchestration loop: it alternates
// model turns and tool turns over a session transcript until the model
// produces a final text reply or the round cap is hit. Turns for the same
// session are serialized; independent sessions run concurrently.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
	"github.com/hupe1980/caremesh/model"
	"github.com/hupe1980/caremesh/session"
	"github.com/hupe1980/caremesh/tool"
)

// ErrLoopLimit signals that a turn exceeded the tool round cap without the
// model producing a final reply.
var ErrLoopLimit = errors.New("dispatch: tool round limit exceeded")

// DefaultSessionID is used when a caller supplies no session id.
const DefaultSessionID = "default"

// DispatchError wraps any failure that aborts a turn, with enough context to
// correlate it to the session and round it occurred in. The transcript keeps
// whatever was appended before the failure.
type DispatchError struct {
	SessionID string
	Round     int
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch: session %s round %d: %v", e.SessionID, e.Round, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Options configure a Dispatcher.
type Options struct {
	// MaxRounds caps the number of model turns per user message.
	MaxRounds int
	// ModelTimeout bounds each individual model call.
	ModelTimeout time.Duration
	// StreamDelay is the fixed pause between emitted stream tokens.
	StreamDelay time.Duration
	Logger      logging.Logger
}

// Dispatcher drives the model/tool loop for every session. Safe for
// concurrent use.
type Dispatcher struct {
	store        session.Store
	llm          model.Model
	registry     map[string]tool.Tool
	toolDefs     []model.ToolDefinition
	instructions string
	opts         Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Dispatcher over the given store, model and tool catalog.
// instructions is the fixed system prompt prepended to every model request.
func New(store session.Store, llm model.Model, tools []tool.Tool, instructions string, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		MaxRounds:    10,
		ModelTimeout: 60 * time.Second,
		StreamDelay:  20 * time.Millisecond,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := make(map[string]tool.Tool, len(tools))
	toolDefs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
		toolDefs = append(toolDefs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return &Dispatcher{
		store:        store,
		llm:          llm,
		registry:     registry,
		toolDefs:     toolDefs,
		instructions: instructions,
		opts:         opts,
		locks:        make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing turns for one session id. A lock
// per id keeps independent sessions fully concurrent.
func (d *Dispatcher) sessionLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[id] = lock
	}
	return lock
}

// Run processes one user message to completion and returns the final
// assistant reply. reset discards the session transcript before the message
// is appended.
func (d *Dispatcher) Run(ctx context.Context, sessionID, message string, reset bool) (string, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	lock := d.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	logger := d.opts.Logger
	logger.Debug("dispatch.run.start", "session_id", sessionID, "reset", reset)

	if reset {
		d.store.Reset(sessionID)
		logger.Info("dispatch.session.reset", "session_id", sessionID)
	}

	d.store.Append(sessionID, core.NewUserMessage(message))

	for round := 1; round <= d.opts.MaxRounds; round++ {
		resp, err := d.modelTurn(ctx, sessionID)
		if err != nil {
			logger.Error("dispatch.model.error", "session_id", sessionID, "round", round, "error", err.Error())
			return "", &DispatchError{SessionID: sessionID, Round: round, Err: err}
		}

		d.store.Append(sessionID, resp.Message)

		calls := resp.Message.FunctionCalls()
		if len(calls) == 0 {
			logger.Info("dispatch.run.complete", "session_id", sessionID, "rounds", round)
			return resp.Message.Text(), nil
		}

		// Tool turn: execute every requested call in order. Failures become
		// structured results the model can recover from, never aborts.
		for _, fc := range calls {
			result, callErr := d.executeCall(ctx, sessionID, fc)
			d.store.Append(sessionID, core.NewToolResultMessage(fc.ID, fc.Name, result, callErr))
		}
	}

	logger.Error("dispatch.run.loop_limit", "session_id", sessionID, "max_rounds", d.opts.MaxRounds)
	return "", &DispatchError{SessionID: sessionID, Round: d.opts.MaxRounds, Err: ErrLoopLimit}
}

// modelTurn issues one bounded model call over the full transcript.
func (d *Dispatcher) modelTurn(ctx context.Context, sessionID string) (model.Response, error) {
	genCtx := ctx
	if d.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, d.opts.ModelTimeout)
		defer cancel()
	}

	resp, err := d.llm.Generate(genCtx, model.Request{
		Instructions: d.instructions,
		Messages:     d.store.Get(sessionID),
		Tools:        d.toolDefs,
	})
	if err != nil {
		return model.Response{}, fmt.Errorf("model generation failed: %w", err)
	}
	return resp, nil
}

// executeCall resolves and invokes a single tool call. Unknown tools,
// argument decode failures, tool errors and panics are all returned as plain
// errors for the caller to fold into the transcript.
func (d *Dispatcher) executeCall(ctx context.Context, sessionID string, fc core.FunctionCall) (result any, err error) {
	logger := d.opts.Logger
	logger.Debug("dispatch.function.start", "session_id", sessionID, "function", fc.Name, "function_call_id", fc.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch.function.panic", "function", fc.Name, "recover", r, "stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
		}
	}()

	impl, ok := d.registry[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if jsonErr := json.Unmarshal([]byte(fc.Arguments), &args); jsonErr != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", jsonErr)
		}
	}

	start := time.Now()
	result, err = impl.Call(ctx, args)
	logger.Info("dispatch.function.executed",
		"session_id", sessionID,
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)
	return result, err
}
