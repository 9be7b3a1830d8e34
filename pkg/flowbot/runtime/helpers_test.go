package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
)

// flowBuilder assembles a graph for engine tests, one node at a time.
type flowBuilder struct {
	t    *testing.T
	g    *flowbot.GraphStore
	last *flowbot.Node
}

// newFlow starts a builder with a start node carrying the stock greeting.
func newFlow(t *testing.T) *flowBuilder {
	t.Helper()
	g := flowbot.NewGraphStore()
	start, err := g.CreateNode(flowbot.KindStart, 0, 0)
	require.NoError(t, err)
	return &flowBuilder{t: t, g: g, last: start}
}

// then appends a node on the default port of the previous one.
func (b *flowBuilder) then(cfg flowbot.Config) *flowbot.Node {
	b.t.Helper()
	n := b.node(cfg)
	b.connect(b.last, flowbot.PortDefault, n)
	b.last = n
	return n
}

// node creates an unconnected node with the given config.
func (b *flowBuilder) node(cfg flowbot.Config) *flowbot.Node {
	b.t.Helper()
	n, err := b.g.CreateNode(cfg.Kind(), 0, 0)
	require.NoError(b.t, err)
	require.NoError(b.t, b.g.SetConfig(n.ID, cfg))
	return n
}

func (b *flowBuilder) connect(from *flowbot.Node, port flowbot.Port, to *flowbot.Node) {
	b.t.Helper()
	_, err := b.g.Connect(from.ID, port, to.ID)
	require.NoError(b.t, err)
}

func (b *flowBuilder) compile() *flowbot.Program {
	b.t.Helper()
	prog, err := flowbot.Compile(b.g)
	require.NoError(b.t, err)
	return prog
}

// sentEffect is one outbound call captured by captureTransport.
type sentEffect struct {
	kind    string
	chatID  string
	text    string
	options []string
	buttons []Button
	file    string
	caption string
	invoice Invoice
}

// captureTransport records outbound effects, optionally failing text sends.
type captureTransport struct {
	mu      sync.Mutex
	sent    []sentEffect
	textErr error
}

func (c *captureTransport) record(e sentEffect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, e)
}

func (c *captureTransport) SendText(_ context.Context, chatID, text string) error {
	c.record(sentEffect{kind: "text", chatID: chatID, text: text})
	return c.textErr
}

func (c *captureTransport) SendOptions(_ context.Context, chatID, text string, options []string) error {
	c.record(sentEffect{kind: "options", chatID: chatID, text: text, options: options})
	return nil
}

func (c *captureTransport) SendInline(_ context.Context, chatID, text string, buttons []Button) error {
	c.record(sentEffect{kind: "inline", chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (c *captureTransport) SendImage(_ context.Context, chatID, file, caption string) error {
	c.record(sentEffect{kind: "image", chatID: chatID, file: file, caption: caption})
	return nil
}

func (c *captureTransport) SendInvoice(_ context.Context, chatID string, inv Invoice) error {
	c.record(sentEffect{kind: "invoice", chatID: chatID, invoice: inv})
	return nil
}

func (c *captureTransport) all() []sentEffect {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentEffect, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *captureTransport) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, e := range c.sent {
		out[i] = e.text
	}
	return out
}

func (c *captureTransport) last(t *testing.T) sentEffect {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestEngine builds an engine with a capture transport, a silent logger
// and an instant clock. Options may override any of these.
func newTestEngine(t *testing.T, prog *flowbot.Program, opts ...Option) (*Engine, *captureTransport) {
	t.Helper()
	tr := &captureTransport{}
	base := []Option{
		WithLogger(testLogger),
		WithClock(func(context.Context, time.Duration) error { return nil }),
	}
	return New(prog, tr, append(base, opts...)...), tr
}

const testChat = "chat_1"

func start(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.StartSession(context.Background(), testChat))
}

func reply(t *testing.T, e *Engine, text string) {
	t.Helper()
	require.NoError(t, e.HandleMessage(context.Background(), testChat, text))
}

func tap(t *testing.T, e *Engine, tag string) {
	t.Helper()
	require.NoError(t, e.HandleCallback(context.Background(), testChat, tag))
}
