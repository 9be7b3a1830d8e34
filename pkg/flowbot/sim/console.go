package sim

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/runtime"
)

// consoleTransport prints outbound effects to a writer.
type consoleTransport struct {
	w io.Writer
}

func (t *consoleTransport) SendText(_ context.Context, chatID, text string) error {
	_, err := fmt.Fprintf(t.w, "[%s] %s\n", chatID, text)
	return err
}

func (t *consoleTransport) SendOptions(_ context.Context, chatID, text string, options []string) error {
	fmt.Fprintf(t.w, "[%s] %s\n", chatID, text)
	for _, opt := range options {
		fmt.Fprintf(t.w, "  ( %s )\n", opt)
	}
	return nil
}

func (t *consoleTransport) SendInline(_ context.Context, chatID, text string, buttons []runtime.Button) error {
	fmt.Fprintf(t.w, "[%s] %s\n", chatID, text)
	for _, b := range buttons {
		fmt.Fprintf(t.w, "  [ %s ] -> /cb %s\n", b.Label, b.Callback)
	}
	return nil
}

func (t *consoleTransport) SendImage(_ context.Context, chatID, file, caption string) error {
	_, err := fmt.Fprintf(t.w, "[%s] <image %s> %s\n", chatID, file, caption)
	return err
}

func (t *consoleTransport) SendInvoice(_ context.Context, chatID string, inv runtime.Invoice) error {
	_, err := fmt.Fprintf(t.w, "[%s] <invoice %s: %d %s>\n",
		chatID, inv.Title, inv.AmountMinor, inv.Currency)
	return err
}

// RunConsole runs the program as an interactive chat on stdin/stdout.
// "/start" (re)starts the session, "/cb <tag>" taps a button, any other
// line is a text reply. EOF ends the loop.
func RunConsole(ctx context.Context, prog *flowbot.Program, opts ...runtime.Option) error {
	transport := &consoleTransport{w: os.Stdout}
	engine := runtime.New(prog, transport, opts...)
	const chatID = "console"

	if err := engine.StartSession(ctx, chatID); err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/start":
			if err := engine.StartSession(ctx, chatID); err != nil {
				return err
			}
		case strings.HasPrefix(line, "/cb "):
			tag := strings.TrimSpace(strings.TrimPrefix(line, "/cb "))
			if err := engine.HandleCallback(ctx, chatID, tag); err != nil {
				return err
			}
		default:
			if err := engine.HandleMessage(ctx, chatID, line); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
