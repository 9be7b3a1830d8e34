package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/expr"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/llm"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/observability"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/store"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/template"
)

// executeNode runs one node and reports where to go next. Dispatch over
// node kinds is exhaustive; runtime failures inside a node bind safe
// defaults and continue rather than aborting the flow. The only errors
// returned are context cancellations.
func (e *Engine) executeNode(ctx context.Context, sess *Session, node *flowbot.ProgramNode, steps *int) (next string, suspended bool, err error) {
	switch cfg := node.Config.(type) {
	case *flowbot.MessageConfig:
		e.send(ctx, sess, node.ID, template.Expand(cfg.Text, sess.vars))
		return node.NextDefault(), false, nil

	case *flowbot.QuestionConfig:
		e.send(ctx, sess, node.ID, template.Expand(cfg.Prompt, sess.vars))
		sess.waiting = &waitInput{
			nodeID:   node.ID,
			variable: cfg.Variable,
			next:     node.NextDefault(),
		}
		return "", true, nil

	case *flowbot.ChoiceConfig:
		prompt := template.Expand(cfg.Prompt, sess.vars)
		if err := e.transport.SendOptions(ctx, sess.ID, prompt, cfg.Options); err != nil {
			observability.LogDeliveryError(e.logger, sess.ID, node.ID, err)
		}
		sess.waiting = &waitInput{
			nodeID:   node.ID,
			variable: cfg.Variable,
			next:     node.NextDefault(),
		}
		return "", true, nil

	case *flowbot.ConditionConfig:
		if expr.Evaluate(cfg.Op, sess.varString(cfg.Variable), cfg.Value) {
			return node.Next[flowbot.PortTrue], false, nil
		}
		return node.Next[flowbot.PortFalse], false, nil

	case *flowbot.DelayConfig:
		seconds := cfg.Seconds
		if seconds < 1 {
			seconds = 1
		}
		if err := e.clock(ctx, time.Duration(seconds)*time.Second); err != nil {
			return "", false, err
		}
		return node.NextDefault(), false, nil

	case *flowbot.SetVariableConfig:
		sess.vars[cfg.Variable] = template.Expand(cfg.Value, sess.vars)
		return node.NextDefault(), false, nil

	case *flowbot.LoopConfig:
		return e.executeLoop(ctx, sess, node, cfg, steps)

	case *flowbot.SendImageConfig:
		if cfg.File != "" {
			caption := template.Expand(cfg.Caption, sess.vars)
			if err := e.transport.SendImage(ctx, sess.ID, cfg.File, caption); err != nil {
				observability.LogDeliveryError(e.logger, sess.ID, node.ID, err)
			}
		}
		return node.NextDefault(), false, nil

	case *flowbot.InlineKeyboardConfig:
		buttons := make([]Button, 0, len(cfg.Buttons))
		for _, b := range cfg.Buttons {
			if b.Callback == "" {
				continue
			}
			buttons = append(buttons, Button{Label: b.Label, Callback: b.Callback})
		}
		text := template.Expand(cfg.Message, sess.vars)
		if len(buttons) == 0 {
			e.send(ctx, sess, node.ID, text)
			return node.NextDefault(), false, nil
		}
		if err := e.transport.SendInline(ctx, sess.ID, text, buttons); err != nil {
			observability.LogDeliveryError(e.logger, sess.ID, node.ID, err)
		}
		sess.waiting = &waitCallback{nodeID: node.ID}
		return "", true, nil

	case *flowbot.ComputeConfig:
		e.executeCompute(sess, node.ID, cfg)
		return node.NextDefault(), false, nil

	case *flowbot.CartOpConfig:
		e.executeCart(ctx, sess, node.ID, cfg)
		return node.NextDefault(), false, nil

	case *flowbot.PaymentConfig:
		e.executePayment(ctx, sess, node.ID, cfg)
		return node.NextDefault(), false, nil

	case *flowbot.RecordStoreConfig:
		e.executeRecordStore(ctx, sess, node.ID, cfg)
		return node.NextDefault(), false, nil

	case *flowbot.CatalogConfig:
		return e.executeCatalog(ctx, sess, node, cfg)

	case *flowbot.IntakeFormConfig:
		return e.executeIntakeForm(ctx, sess, node, cfg)

	case *flowbot.NotifyConfig:
		e.executeNotify(ctx, sess, node.ID, cfg)
		return node.NextDefault(), false, nil

	case *flowbot.OrderConfirmConfig:
		return e.executeOrderConfirm(ctx, sess, node, cfg)

	case *flowbot.LLMPromptConfig:
		e.executeLLMPrompt(ctx, sess, node.ID, cfg)
		return node.NextDefault(), false, nil

	default:
		e.logger.Warn("node kind not executable",
			slog.String("session_id", sess.ID),
			slog.String("node_id", node.ID),
			slog.String("kind", string(node.Kind)))
		return node.NextDefault(), false, nil
	}
}

// executeLoop iterates the body segment per the loop mode. A body that
// suspends ends the loop: the suspension wins and the exit branch is not
// taken until the flow naturally continues from the reply.
func (e *Engine) executeLoop(ctx context.Context, sess *Session, node *flowbot.ProgramNode, cfg *flowbot.LoopConfig, steps *int) (string, bool, error) {
	body := node.Next[flowbot.PortLoopBody]

	iterate := func(i int, item string) (stop bool, err error) {
		if cfg.CounterVariable != "" {
			sess.vars[cfg.CounterVariable] = i
		}
		if item != "" && cfg.ListVariable != "" {
			sess.vars[cfg.ListVariable] = item
		}
		if body == "" {
			return false, nil
		}
		if err := e.runSegment(ctx, sess, body, steps); err != nil {
			return true, err
		}
		if sess.waiting != nil {
			e.logger.Warn("loop body suspended, exiting loop",
				slog.String("session_id", sess.ID),
				slog.String("node_id", node.ID))
			return true, nil
		}
		return *steps > e.maxSteps, nil
	}

	switch cfg.Mode {
	case flowbot.LoopWhile:
		i := 0
		for expr.Evaluate(cfg.WhileOp, sess.varString(cfg.WhileVariable), cfg.WhileValue) {
			i++
			if stop, err := iterate(i, ""); err != nil || stop {
				if err != nil {
					return "", false, err
				}
				if sess.waiting != nil {
					return "", true, nil
				}
				return "", false, nil
			}
			*steps++
			if *steps > e.maxSteps {
				observability.LogMaxSteps(e.logger, sess.ID, node.ID, *steps)
				return "", false, nil
			}
		}

	case flowbot.LoopList:
		items := strings.Split(cfg.ListItems, ",")
		i := 0
		for _, raw := range items {
			item := strings.TrimSpace(raw)
			if item == "" {
				continue
			}
			i++
			if stop, err := iterate(i, item); err != nil || stop {
				if err != nil {
					return "", false, err
				}
				if sess.waiting != nil {
					return "", true, nil
				}
				return "", false, nil
			}
		}

	default: // count
		for i := 1; i <= cfg.Count; i++ {
			if stop, err := iterate(i, ""); err != nil || stop {
				if err != nil {
					return "", false, err
				}
				if sess.waiting != nil {
					return "", true, nil
				}
				return "", false, nil
			}
		}
	}
	return node.NextDefault(), false, nil
}

// executeCompute substitutes variables into the formula by numeric value
// and evaluates it. Any failure binds 0.
func (e *Engine) executeCompute(sess *Session, nodeID string, cfg *flowbot.ComputeConfig) {
	if strings.TrimSpace(cfg.Formula) == "" {
		return
	}
	expanded := template.ExpandFunc(cfg.Formula, func(name string) (string, bool) {
		v, ok := sess.vars[name]
		if !ok {
			return "", false
		}
		f, _ := expr.ToFloat64(v)
		return template.FormatValue(f), true
	})
	result, err := expr.Calculate(expanded)
	if err != nil {
		e.logger.Warn("formula rejected, binding zero",
			slog.String("session_id", sess.ID),
			slog.String("node_id", nodeID),
			slog.String("error", err.Error()))
		result = 0
	}
	sess.vars[cfg.ResultVariable] = result
}

// executeCart applies a cart operation.
func (e *Engine) executeCart(ctx context.Context, sess *Session, nodeID string, cfg *flowbot.CartOpConfig) {
	switch cfg.Action {
	case flowbot.CartAdd:
		productID := sess.varString(cfg.ProductVariable)
		if productID == "" {
			return
		}
		qty := 1
		if cfg.QuantityVariable != "" {
			if f, ok := expr.ToFloat64(sess.vars[cfg.QuantityVariable]); ok {
				qty = int(f)
			}
		}
		if qty <= 0 {
			e.logger.Warn("non-positive quantity, clamping to 1",
				slog.String("session_id", sess.ID),
				slog.String("node_id", nodeID))
			qty = 1
		}
		sess.cart.add(productID, qty)

	case flowbot.CartRemove:
		sess.cart.remove(sess.varString(cfg.ProductVariable))

	case flowbot.CartShow:
		var text string
		if sess.cart.empty() {
			text = "🛒 Корзина пуста"
		} else {
			var b strings.Builder
			b.WriteString("🛒 Ваша корзина:\n\n")
			for _, id := range sess.cart.order {
				fmt.Fprintf(&b, "• %s: %d шт.\n", id, sess.cart.items[id])
			}
			text = b.String()
		}
		sess.vars["cart_contents"] = text
		e.send(ctx, sess, nodeID, text)

	case flowbot.CartClear:
		sess.cart.clear()

	case flowbot.CartCount:
		sess.vars["cart_count"] = sess.cart.count()
	}
}

// executePayment sends an invoice when the amount and provider token are
// usable, otherwise reports the misconfiguration to the chat.
func (e *Engine) executePayment(ctx context.Context, sess *Session, nodeID string, cfg *flowbot.PaymentConfig) {
	f, _ := expr.ToFloat64(sess.vars[cfg.AmountVariable])
	amountMinor := int(f * 100)

	token := cfg.ProviderToken
	if amountMinor <= 0 || token == "" || token == "YOUR_PAYMENT_TOKEN" {
		e.send(ctx, sess, nodeID, "❌ Ошибка: не указан provider_token или сумма оплаты")
		return
	}
	inv := Invoice{
		Title:         template.Expand(cfg.Title, sess.vars),
		Description:   template.Expand(cfg.Description, sess.vars),
		Currency:      cfg.Currency,
		ProviderToken: token,
		Payload:       fmt.Sprintf("order_%s_%d", sess.ID, time.Now().Unix()),
		AmountMinor:   amountMinor,
	}
	if err := e.transport.SendInvoice(ctx, sess.ID, inv); err != nil {
		observability.LogDeliveryError(e.logger, sess.ID, nodeID, err)
	}
}

// executeRecordStore runs a store operation. Store failures bind failure
// results and keep the flow going.
func (e *Engine) executeRecordStore(ctx context.Context, sess *Session, nodeID string, cfg *flowbot.RecordStoreConfig) {
	key := template.Expand(cfg.Key, sess.vars)
	bind := func(v any) {
		if cfg.ResultVariable != "" {
			sess.vars[cfg.ResultVariable] = v
		}
	}

	switch cfg.Op {
	case flowbot.RecordLoad:
		value, err := e.records.Load(ctx, key)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				observability.LogNodeError(e.logger, sess.ID, nodeID, err)
			}
			bind("")
			return
		}
		bind(value)

	case flowbot.RecordDelete:
		err := e.records.Delete(ctx, key)
		if err != nil {
			observability.LogNodeError(e.logger, sess.ID, nodeID, err)
		}
		bind(err == nil)

	default: // save
		err := e.records.Save(ctx, key, sess.varString(cfg.DataVariable))
		if err != nil {
			observability.LogNodeError(e.logger, sess.ID, nodeID, err)
		}
		bind(err == nil)
	}
}

// executeIntakeForm starts the sequential field prompts.
func (e *Engine) executeIntakeForm(ctx context.Context, sess *Session, node *flowbot.ProgramNode, cfg *flowbot.IntakeFormConfig) (string, bool, error) {
	if len(cfg.Fields) == 0 {
		return node.NextDefault(), false, nil
	}
	fields := make([]formField, len(cfg.Fields))
	for i, f := range cfg.Fields {
		fields[i] = formField{label: fieldLabel(f.Kind), variable: f.Variable}
	}
	w := &waitForm{
		nodeID:  node.ID,
		fields:  fields,
		success: cfg.SuccessMessage,
		next:    node.NextDefault(),
	}
	e.send(ctx, sess, node.ID, "Введите "+fields[0].label+":")
	sess.waiting = w
	return "", true, nil
}

// resumeForm binds one field reply and prompts the next field or finishes.
func (e *Engine) resumeForm(ctx context.Context, sess *Session, w *waitForm, text string) error {
	sess.vars[w.fields[w.index].variable] = text
	w.index++
	if w.index < len(w.fields) {
		e.send(ctx, sess, w.nodeID, "Введите "+w.fields[w.index].label+":")
		return nil
	}
	sess.waiting = nil
	e.send(ctx, sess, w.nodeID, template.Expand(w.success, sess.vars))
	return e.run(ctx, sess, w.next)
}

// fieldLabel maps well-known field kinds to their prompt labels.
func fieldLabel(kind flowbot.FieldKind) string {
	switch kind {
	case flowbot.FieldName:
		return "Имя"
	case flowbot.FieldPhone:
		return "Телефон"
	case flowbot.FieldEmail:
		return "Email"
	case flowbot.FieldAddress:
		return "Адрес доставки"
	case flowbot.FieldComment:
		return "Комментарий"
	default:
		return string(kind)
	}
}

// executeNotify delivers an out-of-band message. Failures are logged and
// never fatal to the flow.
func (e *Engine) executeNotify(ctx context.Context, sess *Session, nodeID string, cfg *flowbot.NotifyConfig) {
	message := template.Expand(cfg.Message, sess.vars)

	var target string
	switch cfg.Target {
	case flowbot.NotifyChatVariable:
		target = sess.varString(cfg.ChatVariable)
	default: // admin
		target = template.Expand(cfg.AdminChatID, sess.vars)
		if target == "" {
			target = e.adminChatID
		}
		if target == "" {
			e.logger.Warn("admin chat not configured, notification dropped",
				slog.String("session_id", sess.ID),
				slog.String("node_id", nodeID),
				slog.String("message", message))
			return
		}
	}
	if target == "" {
		return
	}
	if err := e.transport.SendText(ctx, target, message); err != nil {
		observability.LogDeliveryError(e.logger, sess.ID, nodeID, err)
	}
}

// executeOrderConfirm renders the confirmation and suspends on its buttons.
func (e *Engine) executeOrderConfirm(ctx context.Context, sess *Session, node *flowbot.ProgramNode, cfg *flowbot.OrderConfirmConfig) (string, bool, error) {
	title := cfg.Title
	if title == "" {
		title = "Подтверждение"
	}
	body := cfg.Template
	if body == "" {
		body = "Заказ готов к подтверждению"
	}
	text := template.Expand(title, sess.vars) + "\n\n" + template.Expand(body, sess.vars)

	var buttons []Button
	if cfg.ShowConfirm {
		buttons = append(buttons, Button{Label: "✅ Подтвердить", Callback: string(flowbot.PortConfirm)})
	}
	if cfg.ShowEdit {
		buttons = append(buttons, Button{Label: "✏️ Редактировать", Callback: string(flowbot.PortEdit)})
	}
	if cfg.ShowCancel {
		buttons = append(buttons, Button{Label: "❌ Отменить", Callback: string(flowbot.PortCancel)})
	}
	if len(buttons) == 0 {
		e.send(ctx, sess, node.ID, text)
		return node.NextDefault(), false, nil
	}
	if err := e.transport.SendInline(ctx, sess.ID, text, buttons); err != nil {
		observability.LogDeliveryError(e.logger, sess.ID, node.ID, err)
	}
	sess.waiting = &waitCallback{nodeID: node.ID}
	return "", true, nil
}

// executeLLMPrompt calls the completion client. Any failure binds an error
// string so downstream nodes can still render.
func (e *Engine) executeLLMPrompt(ctx context.Context, sess *Session, nodeID string, cfg *flowbot.LLMPromptConfig) {
	resultVar := cfg.ResultVariable
	if resultVar == "" {
		resultVar = "gpt_response"
	}
	if e.llmClient == nil {
		sess.vars[resultVar] = "Ошибка: API key не указан"
		return
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	start := time.Now()
	resp, err := e.llmClient.Complete(ctx, llm.CompletionRequest{
		Prompt:      template.Expand(cfg.Prompt, sess.vars),
		Model:       model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	e.metrics.RecordLLMCall(ctx, model, time.Since(start), err)
	if err != nil {
		observability.LogNodeError(e.logger, sess.ID, nodeID, err)
		sess.vars[resultVar] = "Ошибка: " + err.Error()
		return
	}
	sess.vars[resultVar] = resp.Content
}

// resumeCallback routes a button tap on the suspended node. Unmatched tags
// leave the suspension in place.
func (e *Engine) resumeCallback(ctx context.Context, sess *Session, node *flowbot.ProgramNode, tag string) error {
	switch cfg := node.Config.(type) {
	case *flowbot.InlineKeyboardConfig:
		for _, b := range cfg.Buttons {
			if b.Callback != "" && b.Callback == tag {
				sess.waiting = nil
				return e.run(ctx, sess, node.Next[flowbot.Port(tag)])
			}
		}

	case *flowbot.OrderConfirmConfig:
		port := flowbot.Port(tag)
		enabled := (port == flowbot.PortConfirm && cfg.ShowConfirm) ||
			(port == flowbot.PortEdit && cfg.ShowEdit) ||
			(port == flowbot.PortCancel && cfg.ShowCancel)
		if enabled {
			sess.waiting = nil
			return e.run(ctx, sess, node.Next[port])
		}

	case *flowbot.CatalogConfig:
		return e.resumeCatalog(ctx, sess, node, tag)
	}

	e.logger.Debug("callback tag ignored",
		slog.String("session_id", sess.ID),
		slog.String("node_id", node.ID),
		slog.String("tag", tag))
	return nil
}
