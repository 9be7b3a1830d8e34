package flowbot

import (
	"fmt"

	"github.com/flowbot-dev/flowbot/pkg/flowbot/expr"
)

// DefaultConfig returns a fresh default configuration for the given kind.
// It is pure: no registry lookups, no shared state, no counters. Unknown
// kinds return ErrUnknownKind.
func DefaultConfig(kind Kind) (Config, error) {
	switch kind {
	case KindStart:
		return &StartConfig{Greeting: "Привет! Добро пожаловать!"}, nil
	case KindMessage:
		return &MessageConfig{Text: "Новое сообщение"}, nil
	case KindQuestion:
		return &QuestionConfig{Prompt: "Ваш вопрос?", Variable: "answer"}, nil
	case KindChoice:
		return &ChoiceConfig{
			Prompt:   "Выберите вариант:",
			Options:  []string{""},
			Variable: "choice",
		}, nil
	case KindCondition:
		return &ConditionConfig{Variable: "answer", Op: expr.OpEquals}, nil
	case KindDelay:
		return &DelayConfig{Seconds: 1}, nil
	case KindSetVariable:
		return &SetVariableConfig{Variable: "var1"}, nil
	case KindLoop:
		return &LoopConfig{
			Mode:            LoopCount,
			Count:           3,
			CounterVariable: "loop_index",
			WhileOp:         expr.OpEquals,
		}, nil
	case KindSendImage:
		return &SendImageConfig{}, nil
	case KindInlineKeyboard:
		return &InlineKeyboardConfig{
			Message: "Выберите:",
			Buttons: []Button{{}},
		}, nil
	case KindCompute:
		return &ComputeConfig{ResultVariable: "result"}, nil
	case KindCartOp:
		return &CartOpConfig{Action: CartAdd}, nil
	case KindPayment:
		return &PaymentConfig{Title: "Оплата заказа", Currency: "RUB"}, nil
	case KindRecordStore:
		return &RecordStoreConfig{Op: RecordSave}, nil
	case KindCatalog:
		return &CatalogConfig{Source: CatalogJSON}, nil
	case KindIntakeForm:
		return &IntakeFormConfig{
			Fields:         []FormField{{Kind: FieldName, Variable: "customer_name"}},
			SuccessMessage: "Спасибо! Данные сохранены.",
		}, nil
	case KindNotify:
		return &NotifyConfig{Target: NotifyAdmin}, nil
	case KindOrderConfirm:
		return &OrderConfirmConfig{
			Title:       "Подтверждение заказа",
			ShowConfirm: true,
			ShowEdit:    true,
		}, nil
	case KindLLMPrompt:
		return &LLMPromptConfig{
			Model:          "gpt-3.5-turbo",
			MaxTokens:      500,
			Temperature:    0.7,
			ResultVariable: "gpt_response",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Ports returns the ordered output ports of a node. The result depends
// only on the node's kind and config: condition nodes branch true/false,
// inline keyboards expose one port per button with a non-empty callback
// tag, order-confirm exposes the enabled confirmation actions, loops
// expose the body port ahead of the exit port, and every other kind has
// the single default port.
//
// Ports is pure; calling it never mutates the node or any shared state.
func Ports(n *Node) []Port {
	switch cfg := n.Config.(type) {
	case *ConditionConfig:
		return []Port{PortTrue, PortFalse}
	case *InlineKeyboardConfig:
		ports := make([]Port, 0, len(cfg.Buttons))
		for _, b := range cfg.Buttons {
			if b.Callback != "" {
				ports = append(ports, Port(b.Callback))
			}
		}
		return ports
	case *OrderConfirmConfig:
		ports := make([]Port, 0, 3)
		if cfg.ShowConfirm {
			ports = append(ports, PortConfirm)
		}
		if cfg.ShowEdit {
			ports = append(ports, PortEdit)
		}
		if cfg.ShowCancel {
			ports = append(ports, PortCancel)
		}
		return ports
	case *LoopConfig:
		return []Port{PortLoopBody, PortDefault}
	default:
		return []Port{PortDefault}
	}
}

// HasPort reports whether port is currently live on the node.
func HasPort(n *Node, port Port) bool {
	for _, p := range Ports(n) {
		if p == port {
			return true
		}
	}
	return false
}
