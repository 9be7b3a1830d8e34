package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/expr"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/llm"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/runtime"
	"github.com/flowbot-dev/flowbot/pkg/flowbot/store"
)

// compile builds and compiles a graph assembled by build.
func compile(t *testing.T, build func(g *flowbot.GraphStore, start *flowbot.Node)) *flowbot.Program {
	t.Helper()
	g := flowbot.NewGraphStore()
	startNode, err := g.CreateNode(flowbot.KindStart, 0, 0)
	require.NoError(t, err)
	build(g, startNode)
	prog, err := flowbot.Compile(g)
	require.NoError(t, err)
	return prog
}

func addNode(t *testing.T, g *flowbot.GraphStore, cfg flowbot.Config) *flowbot.Node {
	t.Helper()
	n, err := g.CreateNode(cfg.Kind(), 0, 0)
	require.NoError(t, err)
	require.NoError(t, g.SetConfig(n.ID, cfg))
	return n
}

func link(t *testing.T, g *flowbot.GraphStore, from *flowbot.Node, port flowbot.Port, to *flowbot.Node) {
	t.Helper()
	_, err := g.Connect(from.ID, port, to.ID)
	require.NoError(t, err)
}

// TestOrderScenario walks a shop flow end to end: pick from the catalog,
// fill the delivery form, confirm and pay.
func TestOrderScenario(t *testing.T) {
	ctx := context.Background()
	prog := compile(t, func(g *flowbot.GraphStore, start *flowbot.Node) {
		catalog := addNode(t, g, &flowbot.CatalogConfig{
			Source:   flowbot.CatalogJSON,
			Products: `[{"name": "Чай", "price": 150}, {"name": "Кофе", "price": 300}]`,
		})
		addToCart := addNode(t, g, &flowbot.CartOpConfig{
			Action: flowbot.CartAdd, ProductVariable: "product_name",
		})
		form := addNode(t, g, &flowbot.IntakeFormConfig{
			Fields: []flowbot.FormField{
				{Kind: flowbot.FieldName, Variable: "customer_name"},
				{Kind: flowbot.FieldAddress, Variable: "address"},
			},
			SuccessMessage: "Спасибо, {customer_name}!",
		})
		confirm := addNode(t, g, &flowbot.OrderConfirmConfig{
			Title:       "Ваш заказ",
			Template:    "{product_name} на адрес {address}",
			ShowConfirm: true,
			ShowCancel:  true,
		})
		pay := addNode(t, g, &flowbot.PaymentConfig{
			Title:          "Оплата заказа",
			AmountVariable: "product_price",
			Currency:       "RUB",
			ProviderToken:  "live:token",
		})
		canceled := addNode(t, g, &flowbot.MessageConfig{Text: "Заказ отменён"})

		link(t, g, start, flowbot.PortDefault, catalog)
		link(t, g, catalog, flowbot.PortDefault, addToCart)
		link(t, g, addToCart, flowbot.PortDefault, form)
		link(t, g, form, flowbot.PortDefault, confirm)
		link(t, g, confirm, flowbot.PortConfirm, pay)
		link(t, g, confirm, flowbot.PortCancel, canceled)
	})

	r := NewRunner(prog)
	require.NoError(t, r.Start(ctx))

	last, ok := r.Transcript.Last()
	require.True(t, ok)
	assert.Equal(t, EntryInline, last.Kind)
	assert.Equal(t, "📋 Каталог товаров (стр. 1/1)", last.Text)

	require.NoError(t, r.Tap(ctx, "catalog_product_2"))
	last, _ = r.Transcript.Last()
	assert.Equal(t, "Введите Имя:", last.Text)

	require.NoError(t, r.Reply(ctx, "Анна"))
	require.NoError(t, r.Reply(ctx, "ул. Ленина, 1"))

	last, _ = r.Transcript.Last()
	assert.Equal(t, EntryInline, last.Kind)
	assert.Equal(t, "Ваш заказ\n\nКофе на адрес ул. Ленина, 1", last.Text)

	require.NoError(t, r.Tap(ctx, "confirm"))
	last, _ = r.Transcript.Last()
	require.Equal(t, EntryInvoice, last.Kind)
	require.NotNil(t, last.Invoice)
	assert.Equal(t, 30000, last.Invoice.AmountMinor)

	texts := r.Transcript.Texts()
	assert.Contains(t, texts, "Спасибо, Анна!")
	assert.NotContains(t, texts, "Заказ отменён")
}

// TestQuizScenario exercises question, condition and loop nodes.
func TestQuizScenario(t *testing.T) {
	ctx := context.Background()
	prog := compile(t, func(g *flowbot.GraphStore, start *flowbot.Node) {
		ask := addNode(t, g, &flowbot.QuestionConfig{
			Prompt: "Столица Франции?", Variable: "answer",
		})
		check := addNode(t, g, &flowbot.ConditionConfig{
			Variable: "answer", Op: expr.OpEquals, Value: "Париж",
		})
		right := addNode(t, g, &flowbot.MessageConfig{Text: "Верно!"})
		wrong := addNode(t, g, &flowbot.MessageConfig{Text: "Неверно"})
		cheer := addNode(t, g, &flowbot.LoopConfig{
			Mode: flowbot.LoopCount, Count: 3, CounterVariable: "i",
		})
		clap := addNode(t, g, &flowbot.MessageConfig{Text: "👏 {i}"})

		link(t, g, start, flowbot.PortDefault, ask)
		link(t, g, ask, flowbot.PortDefault, check)
		link(t, g, check, flowbot.PortTrue, right)
		link(t, g, check, flowbot.PortFalse, wrong)
		link(t, g, right, flowbot.PortDefault, cheer)
		link(t, g, cheer, flowbot.PortLoopBody, clap)
	})

	r := NewRunner(prog)
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Reply(ctx, "Париж"))

	assert.Equal(t, []string{
		"Привет! Добро пожаловать!",
		"Столица Франции?",
		"Верно!",
		"👏 1", "👏 2", "👏 3",
	}, r.Transcript.Texts())

	// A fresh start takes the other branch.
	r.Transcript.Clear()
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Reply(ctx, "Лион"))
	texts := r.Transcript.Texts()
	assert.Contains(t, texts, "Неверно")
	assert.NotContains(t, texts, "Верно!")
}

// TestSupportScenario exercises llm and record-store nodes together.
func TestSupportScenario(t *testing.T) {
	ctx := context.Background()
	prog := compile(t, func(g *flowbot.GraphStore, start *flowbot.Node) {
		ask := addNode(t, g, &flowbot.QuestionConfig{
			Prompt: "Опишите проблему:", Variable: "issue",
		})
		draft := addNode(t, g, &flowbot.LLMPromptConfig{
			Prompt: "Ответь клиенту: {issue}", ResultVariable: "reply",
		})
		answer := addNode(t, g, &flowbot.MessageConfig{Text: "{reply}"})
		save := addNode(t, g, &flowbot.RecordStoreConfig{
			Op: flowbot.RecordSave, Key: "ticket_last", DataVariable: "issue",
		})

		link(t, g, start, flowbot.PortDefault, ask)
		link(t, g, ask, flowbot.PortDefault, draft)
		link(t, g, draft, flowbot.PortDefault, answer)
		link(t, g, answer, flowbot.PortDefault, save)
	})

	records := store.NewMemoryStore()
	mock := &llm.MockClient{Response: "Попробуйте перезагрузить приложение"}
	r := NewRunner(prog, runtime.WithStore(records), runtime.WithLLM(mock))

	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Reply(ctx, "не приходит код"))

	last, _ := r.Transcript.Last()
	assert.Equal(t, "Попробуйте перезагрузить приложение", last.Text)
	require.Len(t, mock.Requests, 1)
	assert.Equal(t, "Ответь клиенту: не приходит код", mock.Requests[0].Prompt)

	saved, err := records.Load(ctx, "ticket_last")
	require.NoError(t, err)
	assert.Equal(t, "не приходит код", saved)
}

func TestTranscriptRecordsAllKinds(t *testing.T) {
	ctx := context.Background()
	tr := NewTranscript()

	require.NoError(t, tr.SendText(ctx, "c", "текст"))
	require.NoError(t, tr.SendOptions(ctx, "c", "выбор", []string{"а", "б"}))
	require.NoError(t, tr.SendInline(ctx, "c", "кнопки", []runtime.Button{{Label: "ок", Callback: "ok"}}))
	require.NoError(t, tr.SendImage(ctx, "c", "a.png", "подпись"))
	require.NoError(t, tr.SendInvoice(ctx, "c", runtime.Invoice{Title: "Оплата", AmountMinor: 100}))

	entries := tr.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, EntryText, entries[0].Kind)
	assert.Equal(t, EntryOptions, entries[1].Kind)
	assert.Equal(t, []string{"а", "б"}, entries[1].Options)
	assert.Equal(t, EntryInline, entries[2].Kind)
	assert.Equal(t, "ok", entries[2].Buttons[0].Callback)
	assert.Equal(t, EntryImage, entries[3].Kind)
	assert.Equal(t, "a.png", entries[3].File)
	assert.Equal(t, EntryInvoice, entries[4].Kind)
	require.NotNil(t, entries[4].Invoice)
	assert.Equal(t, 100, entries[4].Invoice.AmountMinor)

	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "c", e.ChatID)
	}

	tr.Clear()
	assert.Empty(t, tr.Entries())
	_, ok := tr.Last()
	assert.False(t, ok)
}

// TestEmittedProgramRoundTrip compiles, serializes and reloads a program,
// then previews the reloaded copy: exported bots behave like the editor.
func TestEmittedProgramRoundTrip(t *testing.T) {
	ctx := context.Background()
	prog := compile(t, func(g *flowbot.GraphStore, start *flowbot.Node) {
		ask := addNode(t, g, &flowbot.QuestionConfig{Prompt: "Имя?", Variable: "name"})
		hello := addNode(t, g, &flowbot.MessageConfig{Text: "Привет, {name}!"})
		link(t, g, start, flowbot.PortDefault, ask)
		link(t, g, ask, flowbot.PortDefault, hello)
	})

	data, err := prog.MarshalJSON()
	require.NoError(t, err)
	reloaded, err := flowbot.LoadProgram(data)
	require.NoError(t, err)

	r := NewRunner(reloaded)
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Reply(ctx, "Анна"))
	last, _ := r.Transcript.Last()
	assert.Equal(t, "Привет, Анна!", last.Text)
}
