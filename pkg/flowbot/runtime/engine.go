// Package runtime executes compiled flow programs.
//
// One Engine serves many concurrent chat sessions over a single immutable
// Program. Each session's turns are serialized by a per-session lock, so a
// suspension (a node waiting for a reply or button tap) is consumed by at
// most one delivery. Session variables are isolated; the record store is
// the only cross-session state.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/llm"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/observability"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/store"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/template"
)

// DefaultMaxSteps bounds the nodes executed in one turn, stopping cyclic
// graphs from spinning forever.
const DefaultMaxSteps = 1000

// Clock waits for a duration, honoring context cancellation.
// Tests inject instant clocks.
type Clock func(ctx context.Context, d time.Duration) error

func realClock(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Engine interprets a Program for any number of sessions.
type Engine struct {
	prog      *flowbot.Program
	transport Transport

	records     store.Store
	llmClient   llm.Client
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	clock       Clock
	maxSteps    int
	adminChatID string

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the record store backend.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.records = s }
}

// WithLLM sets the completion client for llm-prompt nodes.
func WithLLM(c llm.Client) Option {
	return func(e *Engine) { e.llmClient = c }
}

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSpanManager sets the tracing span manager.
func WithSpanManager(s observability.SpanManager) Option {
	return func(e *Engine) { e.spans = s }
}

// WithClock replaces the delay clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMaxSteps replaces the per-turn step budget.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithAdminChatID sets the fallback admin chat for notify nodes whose own
// admin chat field is empty.
func WithAdminChatID(id string) Option {
	return func(e *Engine) { e.adminChatID = id }
}

// New creates an engine for the program.
func New(prog *flowbot.Program, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		prog:      prog,
		transport: transport,
		records:   store.NewMemoryStore(),
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		clock:     realClock,
		maxSteps:  DefaultMaxSteps,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session returns the session for a chat, creating it on first use.
func (e *Engine) Session(chatID string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[chatID]
	if !ok {
		sess = newSession(chatID)
		e.sessions[chatID] = sess
	}
	return sess
}

// StartSession begins (or restarts) the flow for a chat: state is reset,
// the greeting is sent and execution runs from the entry node until it
// suspends or ends.
func (e *Engine) StartSession(ctx context.Context, chatID string) error {
	sess := e.Session(chatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, span := e.spans.StartTurnSpan(ctx, chatID, "start")
	var turnErr error
	defer func() { e.spans.EndSpanWithError(span, turnErr) }()

	observability.LogSessionStart(e.logger, chatID)
	e.metrics.RecordSessionStart(ctx)

	sess.reset()
	e.send(ctx, sess, "", template.Expand(e.prog.Greeting, sess.vars))
	turnErr = e.run(ctx, sess, e.prog.Entry)
	return turnErr
}

// HandleMessage delivers a free-text reply from a chat. When the session
// awaits input the text is bound and execution resumes; otherwise the
// message is ignored.
func (e *Engine) HandleMessage(ctx context.Context, chatID, text string) error {
	sess := e.Session(chatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, span := e.spans.StartTurnSpan(ctx, chatID, "message")
	var turnErr error
	defer func() { e.spans.EndSpanWithError(span, turnErr) }()

	switch w := sess.waiting.(type) {
	case *waitInput:
		sess.waiting = nil
		sess.vars[w.variable] = text
		turnErr = e.run(ctx, sess, w.next)
	case *waitForm:
		turnErr = e.resumeForm(ctx, sess, w, text)
	default:
		e.logger.Debug("message ignored, session not awaiting input",
			slog.String("session_id", chatID))
	}
	return turnErr
}

// HandleCallback delivers a button tap from a chat. Tags that do not match
// the suspended node's live buttons are ignored and the session stays
// suspended.
func (e *Engine) HandleCallback(ctx context.Context, chatID, tag string) error {
	sess := e.Session(chatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx, span := e.spans.StartTurnSpan(ctx, chatID, "callback")
	var turnErr error
	defer func() { e.spans.EndSpanWithError(span, turnErr) }()

	w, ok := sess.waiting.(*waitCallback)
	if !ok {
		e.logger.Debug("callback ignored, session not awaiting one",
			slog.String("session_id", chatID),
			slog.String("tag", tag))
		return nil
	}
	node, ok := e.prog.Nodes[w.nodeID]
	if !ok {
		e.logger.Warn("suspended node missing from program",
			slog.String("session_id", chatID),
			slog.String("node_id", w.nodeID))
		sess.waiting = nil
		return nil
	}
	turnErr = e.resumeCallback(ctx, sess, node, tag)
	return turnErr
}

// run executes nodes from id until the flow suspends, ends, or the step
// budget runs out. Reaching a node with no successor idles the session.
func (e *Engine) run(ctx context.Context, sess *Session, id string) error {
	steps := 0
	return e.runSegment(ctx, sess, id, &steps)
}

func (e *Engine) runSegment(ctx context.Context, sess *Session, id string, steps *int) error {
	cur := id
	for cur != "" {
		*steps++
		if *steps > e.maxSteps {
			observability.LogMaxSteps(e.logger, sess.ID, cur, *steps)
			return nil
		}
		node, ok := e.prog.Nodes[cur]
		if !ok {
			e.logger.Warn("route to unknown node",
				slog.String("session_id", sess.ID),
				slog.String("node_id", cur))
			return nil
		}

		nodeCtx, span := e.spans.StartNodeSpan(ctx, node.ID, string(node.Kind))
		start := time.Now()
		next, suspended, err := e.executeNode(nodeCtx, sess, node, steps)
		e.metrics.RecordNodeExecution(nodeCtx, string(node.Kind), time.Since(start), err)
		e.spans.EndSpanWithError(span, err)

		if err != nil {
			observability.LogNodeError(e.logger, sess.ID, node.ID, err)
			return err
		}
		observability.LogNodeExecute(e.logger, sess.ID, node.ID, string(node.Kind), time.Since(start))
		if suspended {
			return nil
		}
		cur = next
	}
	observability.LogSessionIdle(e.logger, sess.ID, id)
	return nil
}

// send delivers text, logging delivery failures without aborting the flow.
func (e *Engine) send(ctx context.Context, sess *Session, nodeID, text string) {
	if text == "" {
		return
	}
	if err := e.transport.SendText(ctx, sess.ID, text); err != nil {
		observability.LogDeliveryError(e.logger, sess.ID, nodeID, err)
	}
}
