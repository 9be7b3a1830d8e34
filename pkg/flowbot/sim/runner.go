package sim

import (
	"context"
	"time"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/runtime"
)

// Runner drives an engine against a transcript for previews and tests.
// Delays complete instantly.
type Runner struct {
	Engine     *runtime.Engine
	Transcript *Transcript
	chatID     string
}

// NewRunner creates a preview runner for the program. Extra engine options
// (store, llm client, logger) are passed through; delay nodes complete
// without waiting.
func NewRunner(prog *flowbot.Program, opts ...runtime.Option) *Runner {
	transcript := NewTranscript()
	engineOpts := append([]runtime.Option{
		runtime.WithClock(func(_ context.Context, _ time.Duration) error { return nil }),
	}, opts...)
	return &Runner{
		Engine:     runtime.New(prog, transcript, engineOpts...),
		Transcript: transcript,
		chatID:     "preview",
	}
}

// Start begins the preview session.
func (r *Runner) Start(ctx context.Context) error {
	return r.Engine.StartSession(ctx, r.chatID)
}

// Reply delivers a user text reply.
func (r *Runner) Reply(ctx context.Context, text string) error {
	return r.Engine.HandleMessage(ctx, r.chatID, text)
}

// Tap delivers a button tap by callback tag.
func (r *Runner) Tap(ctx context.Context, tag string) error {
	return r.Engine.HandleCallback(ctx, r.chatID, tag)
}

// Session returns the preview session for state inspection.
func (r *Runner) Session() *runtime.Session {
	return r.Engine.Session(r.chatID)
}
