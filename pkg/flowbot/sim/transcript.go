// Package sim provides execution preview for flows: a recording transport,
// a scripted runner, and the interactive console loop used by exported
// programs. Previews run the same engine as production, so previewed and
// deployed behavior agree by construction.
package sim

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/flowbot-dev/flowbot/pkg/flowbot/runtime"
)

// EntryKind classifies a transcript entry.
type EntryKind string

// Transcript entry kinds.
const (
	EntryText    EntryKind = "text"
	EntryOptions EntryKind = "options"
	EntryInline  EntryKind = "inline"
	EntryImage   EntryKind = "image"
	EntryInvoice EntryKind = "invoice"
)

// Entry is one outbound effect recorded by a Transcript.
type Entry struct {
	ID      string
	ChatID  string
	Kind    EntryKind
	Text    string
	Options []string
	Buttons []runtime.Button
	File    string
	Caption string
	Invoice *runtime.Invoice
}

// Transcript is a runtime.Transport that records every outbound effect.
// Safe for concurrent use.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

var _ runtime.Transport = (*Transcript)(nil)

func (t *Transcript) record(e Entry) {
	e.ID = uuid.New().String()
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

// SendText implements runtime.Transport.
func (t *Transcript) SendText(_ context.Context, chatID, text string) error {
	t.record(Entry{ChatID: chatID, Kind: EntryText, Text: text})
	return nil
}

// SendOptions implements runtime.Transport.
func (t *Transcript) SendOptions(_ context.Context, chatID, text string, options []string) error {
	t.record(Entry{
		ChatID:  chatID,
		Kind:    EntryOptions,
		Text:    text,
		Options: append([]string(nil), options...),
	})
	return nil
}

// SendInline implements runtime.Transport.
func (t *Transcript) SendInline(_ context.Context, chatID, text string, buttons []runtime.Button) error {
	t.record(Entry{
		ChatID:  chatID,
		Kind:    EntryInline,
		Text:    text,
		Buttons: append([]runtime.Button(nil), buttons...),
	})
	return nil
}

// SendImage implements runtime.Transport.
func (t *Transcript) SendImage(_ context.Context, chatID, file, caption string) error {
	t.record(Entry{ChatID: chatID, Kind: EntryImage, File: file, Caption: caption})
	return nil
}

// SendInvoice implements runtime.Transport.
func (t *Transcript) SendInvoice(_ context.Context, chatID string, inv runtime.Invoice) error {
	cp := inv
	t.record(Entry{ChatID: chatID, Kind: EntryInvoice, Text: inv.Title, Invoice: &cp})
	return nil
}

// Entries returns a copy of all recorded entries.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Texts returns the Text of every entry in order.
func (t *Transcript) Texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Text
	}
	return out
}

// Last returns the most recent entry.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Clear drops all recorded entries.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}
