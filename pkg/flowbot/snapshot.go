package flowbot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/flowbot-dev/flowbot/pkg/flowbot/expr"
)

// Snapshot is the on-disk form of a graph. Blocks carry their config fields
// flattened into the record plus mirrored connection slots; the edge list is
// the authoritative connection set.
type Snapshot struct {
	Blocks       map[string]*BlockRecord `json:"blocks"`
	Connections  []*Edge                 `json:"connections"`
	BlockCounter int                     `json:"blockCounter"`
	Settings     Settings                `json:"settings"`
}

// ConnectionSlots mirrors a node's inbound edge and port map.
type ConnectionSlots struct {
	Input   string          `json:"input,omitempty"`
	Outputs map[Port]string `json:"outputs,omitempty"`
}

// BlockRecord is one serialized node. Config fields for every kind share
// the flat namespace; only the fields of the record's kind are populated.
type BlockRecord struct {
	ID   string  `json:"id"`
	Type Kind    `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`

	Text     string   `json:"text,omitempty"`
	Question string   `json:"question,omitempty"`
	Variable string   `json:"variable,omitempty"`
	Options  []string `json:"options,omitempty"`

	Condition string `json:"condition,omitempty"`
	Value     string `json:"value,omitempty"`

	Seconds int `json:"seconds,omitempty"`

	LoopType        string `json:"loop_type,omitempty"`
	Count           int    `json:"count,omitempty"`
	CounterVariable string `json:"counter_variable,omitempty"`
	WhileVariable   string `json:"while_variable,omitempty"`
	WhileCondition  string `json:"while_condition,omitempty"`
	WhileValue      string `json:"while_value,omitempty"`
	ListItems       string `json:"list_items,omitempty"`
	ListVariable    string `json:"list_variable,omitempty"`

	ImageFile string `json:"image_file,omitempty"`
	Caption   string `json:"caption,omitempty"`

	Message string   `json:"message,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`

	Formula        string `json:"formula,omitempty"`
	ResultVariable string `json:"result_variable,omitempty"`

	Action    string `json:"action,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  string `json:"quantity,omitempty"`

	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	ProviderToken string `json:"provider_token,omitempty"`

	Operation string `json:"operation,omitempty"`
	Key       string `json:"key,omitempty"`
	Data      string `json:"data,omitempty"`

	Source   string `json:"source,omitempty"`
	Products string `json:"products,omitempty"`

	Fields         []FormField `json:"fields,omitempty"`
	SuccessMessage string      `json:"success_message,omitempty"`

	Target      string `json:"target,omitempty"`
	AdminChatID string `json:"admin_chat_id,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`

	Template    string `json:"template,omitempty"`
	ShowConfirm *bool  `json:"show_confirm,omitempty"`
	ShowEdit    *bool  `json:"show_edit,omitempty"`
	ShowCancel  *bool  `json:"show_cancel,omitempty"`

	Prompt      string  `json:"prompt,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`

	Connections ConnectionSlots `json:"connections"`

	// Legacy single-slot fields from old snapshots. Folded into the port
	// map on load, never written back.
	LegacyOutput      string `json:"output,omitempty"`
	LegacyTrueOutput  string `json:"trueOutput,omitempty"`
	LegacyFalseOutput string `json:"falseOutput,omitempty"`
}

// Export produces a deep-copied snapshot of the store.
func (g *GraphStore) Export() *Snapshot {
	snap := &Snapshot{
		Blocks:       make(map[string]*BlockRecord, len(g.nodes)),
		Connections:  make([]*Edge, 0, len(g.edges)),
		BlockCounter: g.counter,
		Settings:     g.settings,
	}
	for _, n := range g.Nodes() {
		snap.Blocks[n.ID] = recordFromNode(n)
	}
	for _, e := range g.edges {
		cp := *e
		snap.Connections = append(snap.Connections, &cp)
	}
	return snap
}

// ExportJSON marshals the store's snapshot.
func (g *GraphStore) ExportJSON() ([]byte, error) {
	return json.Marshal(g.Export())
}

// Load rebuilds a store from a snapshot. Blocks of unknown kind are skipped
// with a warning, missing config fields take catalog defaults, legacy
// connection fields are folded into the port map, and the result is
// normalized so every surviving edge references live nodes and ports.
func Load(snap *Snapshot) (*GraphStore, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrBadSnapshot)
	}
	g := NewGraphStore()
	g.settings = snap.Settings
	g.counter = snap.BlockCounter

	for id, rec := range snap.Blocks {
		n, err := nodeFromRecord(rec)
		if err != nil {
			slog.Warn("skipping block in snapshot",
				slog.String("block_id", id),
				slog.String("error", err.Error()))
			continue
		}
		if n.ID == "" {
			n.ID = id
		}
		g.nodes[n.ID] = n

		// Never mint an id that collides with a loaded block.
		if suffix, ok := strings.CutPrefix(n.ID, "block_"); ok {
			if v, err := strconv.Atoi(suffix); err == nil && v > g.counter {
				g.counter = v
			}
		}
	}

	for _, e := range snap.Connections {
		cp := *e
		if cp.ID == "" {
			cp.ID = uuid.New().String()
		}
		g.edges = append(g.edges, &cp)
	}

	// Fold legacy single-slot connection fields from old snapshots.
	for id, rec := range snap.Blocks {
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		for port, target := range legacyTargets(rec) {
			if g.hasEdgeFrom(id, port) {
				continue
			}
			g.edges = append(g.edges, &Edge{
				ID:       uuid.New().String(),
				From:     id,
				FromPort: port,
				To:       target,
			})
		}
	}

	g.NormalizeAll()
	return g, nil
}

// LoadJSON unmarshals and loads a snapshot.
func LoadJSON(data []byte) (*GraphStore, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return Load(&snap)
}

// legacyTargets extracts old-format direct-target fields.
func legacyTargets(rec *BlockRecord) map[Port]string {
	out := make(map[Port]string)
	if rec.LegacyOutput != "" {
		out[PortDefault] = rec.LegacyOutput
	}
	if rec.LegacyTrueOutput != "" {
		out[PortTrue] = rec.LegacyTrueOutput
	}
	if rec.LegacyFalseOutput != "" {
		out[PortFalse] = rec.LegacyFalseOutput
	}
	return out
}

func (g *GraphStore) hasEdgeFrom(nodeID string, port Port) bool {
	for _, e := range g.edges {
		if e.From == nodeID && e.FromPort == port {
			return true
		}
	}
	return false
}

// recordFromNode flattens a node into its serialized record.
func recordFromNode(n *Node) *BlockRecord {
	rec := &BlockRecord{
		ID:   n.ID,
		Type: n.Kind,
		X:    n.X,
		Y:    n.Y,
	}
	rec.Connections.Input = n.Input
	if len(n.Outputs) > 0 {
		rec.Connections.Outputs = make(map[Port]string, len(n.Outputs))
		for p, e := range n.Outputs {
			rec.Connections.Outputs[p] = e
		}
	}

	switch cfg := n.Config.(type) {
	case *StartConfig:
		rec.Text = cfg.Greeting
	case *MessageConfig:
		rec.Text = cfg.Text
	case *QuestionConfig:
		rec.Question = cfg.Prompt
		rec.Variable = cfg.Variable
	case *ChoiceConfig:
		rec.Question = cfg.Prompt
		rec.Options = append([]string(nil), cfg.Options...)
		rec.Variable = cfg.Variable
	case *ConditionConfig:
		rec.Variable = cfg.Variable
		rec.Condition = string(cfg.Op)
		rec.Value = cfg.Value
	case *DelayConfig:
		rec.Seconds = cfg.Seconds
	case *SetVariableConfig:
		rec.Variable = cfg.Variable
		rec.Value = cfg.Value
	case *LoopConfig:
		rec.LoopType = string(cfg.Mode)
		rec.Count = cfg.Count
		rec.CounterVariable = cfg.CounterVariable
		rec.WhileVariable = cfg.WhileVariable
		rec.WhileCondition = string(cfg.WhileOp)
		rec.WhileValue = cfg.WhileValue
		rec.ListItems = cfg.ListItems
		rec.ListVariable = cfg.ListVariable
	case *SendImageConfig:
		rec.ImageFile = cfg.File
		rec.Caption = cfg.Caption
	case *InlineKeyboardConfig:
		rec.Message = cfg.Message
		rec.Buttons = append([]Button(nil), cfg.Buttons...)
	case *ComputeConfig:
		rec.Formula = cfg.Formula
		rec.ResultVariable = cfg.ResultVariable
	case *CartOpConfig:
		rec.Action = string(cfg.Action)
		rec.ProductID = cfg.ProductVariable
		rec.Quantity = cfg.QuantityVariable
	case *PaymentConfig:
		rec.Title = cfg.Title
		rec.Description = cfg.Description
		rec.Amount = cfg.AmountVariable
		rec.Currency = cfg.Currency
		rec.ProviderToken = cfg.ProviderToken
	case *RecordStoreConfig:
		rec.Operation = string(cfg.Op)
		rec.Key = cfg.Key
		rec.Data = cfg.DataVariable
		rec.ResultVariable = cfg.ResultVariable
	case *CatalogConfig:
		rec.Source = string(cfg.Source)
		rec.Products = cfg.Products
	case *IntakeFormConfig:
		rec.Fields = append([]FormField(nil), cfg.Fields...)
		rec.SuccessMessage = cfg.SuccessMessage
	case *NotifyConfig:
		rec.Target = string(cfg.Target)
		rec.AdminChatID = cfg.AdminChatID
		rec.ChatID = cfg.ChatVariable
		rec.Message = cfg.Message
	case *OrderConfirmConfig:
		rec.Title = cfg.Title
		rec.Template = cfg.Template
		rec.ShowConfirm = boolPtr(cfg.ShowConfirm)
		rec.ShowEdit = boolPtr(cfg.ShowEdit)
		rec.ShowCancel = boolPtr(cfg.ShowCancel)
	case *LLMPromptConfig:
		rec.Prompt = cfg.Prompt
		rec.Model = cfg.Model
		rec.MaxTokens = cfg.MaxTokens
		rec.Temperature = cfg.Temperature
		rec.ResultVariable = cfg.ResultVariable
	}
	return rec
}

// nodeFromRecord rebuilds a node from its serialized record. Fields absent
// from the record keep their zero values; flag fields absent from the
// record take their catalog defaults.
func nodeFromRecord(rec *BlockRecord) (*Node, error) {
	var cfg Config
	switch rec.Type {
	case KindStart:
		cfg = &StartConfig{Greeting: rec.Text}
	case KindMessage:
		cfg = &MessageConfig{Text: rec.Text}
	case KindQuestion:
		cfg = &QuestionConfig{Prompt: rec.Question, Variable: rec.Variable}
	case KindChoice:
		cfg = &ChoiceConfig{
			Prompt:   rec.Question,
			Options:  append([]string(nil), rec.Options...),
			Variable: rec.Variable,
		}
	case KindCondition:
		op, err := expr.ParseOp(rec.Condition)
		if err != nil {
			op = expr.OpEquals
		}
		cfg = &ConditionConfig{Variable: rec.Variable, Op: op, Value: rec.Value}
	case KindDelay:
		cfg = &DelayConfig{Seconds: rec.Seconds}
	case KindSetVariable:
		cfg = &SetVariableConfig{Variable: rec.Variable, Value: rec.Value}
	case KindLoop:
		mode := LoopMode(rec.LoopType)
		if mode != LoopCount && mode != LoopWhile && mode != LoopList {
			mode = LoopCount
		}
		whileOp, err := expr.ParseOp(rec.WhileCondition)
		if err != nil {
			whileOp = expr.OpEquals
		}
		cfg = &LoopConfig{
			Mode:            mode,
			Count:           rec.Count,
			CounterVariable: rec.CounterVariable,
			WhileVariable:   rec.WhileVariable,
			WhileOp:         whileOp,
			WhileValue:      rec.WhileValue,
			ListItems:       rec.ListItems,
			ListVariable:    rec.ListVariable,
		}
	case KindSendImage:
		cfg = &SendImageConfig{File: rec.ImageFile, Caption: rec.Caption}
	case KindInlineKeyboard:
		cfg = &InlineKeyboardConfig{
			Message: rec.Message,
			Buttons: append([]Button(nil), rec.Buttons...),
		}
	case KindCompute:
		cfg = &ComputeConfig{Formula: rec.Formula, ResultVariable: rec.ResultVariable}
	case KindCartOp:
		action := CartAction(rec.Action)
		if action == "" {
			action = CartAdd
		}
		cfg = &CartOpConfig{
			Action:           action,
			ProductVariable:  rec.ProductID,
			QuantityVariable: rec.Quantity,
		}
	case KindPayment:
		currency := rec.Currency
		if currency == "" {
			currency = "RUB"
		}
		cfg = &PaymentConfig{
			Title:          rec.Title,
			Description:    rec.Description,
			AmountVariable: rec.Amount,
			Currency:       currency,
			ProviderToken:  rec.ProviderToken,
		}
	case KindRecordStore:
		op := RecordOp(rec.Operation)
		if op == "" {
			op = RecordSave
		}
		cfg = &RecordStoreConfig{
			Op:             op,
			Key:            rec.Key,
			DataVariable:   rec.Data,
			ResultVariable: rec.ResultVariable,
		}
	case KindCatalog:
		source := CatalogSource(rec.Source)
		if source == "" {
			source = CatalogJSON
		}
		cfg = &CatalogConfig{Source: source, Products: rec.Products}
	case KindIntakeForm:
		cfg = &IntakeFormConfig{
			Fields:         append([]FormField(nil), rec.Fields...),
			SuccessMessage: rec.SuccessMessage,
		}
	case KindNotify:
		target := NotifyTarget(rec.Target)
		if target == "" {
			target = NotifyAdmin
		}
		cfg = &NotifyConfig{
			Target:       target,
			AdminChatID:  rec.AdminChatID,
			ChatVariable: rec.ChatID,
			Message:      rec.Message,
		}
	case KindOrderConfirm:
		cfg = &OrderConfirmConfig{
			Title:       rec.Title,
			Template:    rec.Template,
			ShowConfirm: boolOr(rec.ShowConfirm, true),
			ShowEdit:    boolOr(rec.ShowEdit, true),
			ShowCancel:  boolOr(rec.ShowCancel, false),
		}
	case KindLLMPrompt:
		cfg = &LLMPromptConfig{
			Prompt:         rec.Prompt,
			Model:          rec.Model,
			MaxTokens:      rec.MaxTokens,
			Temperature:    rec.Temperature,
			ResultVariable: rec.ResultVariable,
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rec.Type)
	}

	n := &Node{
		ID:      rec.ID,
		Kind:    rec.Type,
		X:       rec.X,
		Y:       rec.Y,
		Config:  cfg,
		Outputs: make(map[Port]string),
	}
	return n, nil
}

func boolPtr(b bool) *bool { return &b }

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
