package runtime

import "context"

// Button is one inline keyboard button as sent to the chat platform.
// Callback is the opaque tag delivered back when the button is tapped.
type Button struct {
	Label    string
	Callback string
}

// Invoice is a payment request. AmountMinor is in minor currency units.
type Invoice struct {
	Title         string
	Description   string
	Currency      string
	ProviderToken string
	Payload       string
	AmountMinor   int
}

// Transport delivers outbound effects to a chat platform. Implementations
// exist for real platforms, for the interactive console, and for test
// transcripts.
//
// Delivery errors are logged by the engine and never abort a flow.
type Transport interface {
	// SendText delivers a plain message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendOptions delivers a message with quick-reply options.
	SendOptions(ctx context.Context, chatID, text string, options []string) error

	// SendInline delivers a message with inline callback buttons.
	SendInline(ctx context.Context, chatID, text string, buttons []Button) error

	// SendImage delivers an image with a caption.
	SendImage(ctx context.Context, chatID, file, caption string) error

	// SendInvoice delivers a payment request.
	SendInvoice(ctx context.Context, chatID string, inv Invoice) error
}
