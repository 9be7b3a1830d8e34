package flowbot

import "github.com/flowbot-dev/flowbot/pkg/flowbot/expr"

// Kind identifies a node type. The set of kinds is closed: every kind the
// editor, compiler and runtime understand is listed here, and dispatch over
// kinds is exhaustive.
type Kind string

// All node kinds.
const (
	KindStart          Kind = "start"
	KindMessage        Kind = "message"
	KindQuestion       Kind = "question"
	KindChoice         Kind = "choice"
	KindCondition      Kind = "condition"
	KindDelay          Kind = "delay"
	KindSetVariable    Kind = "set-variable"
	KindLoop           Kind = "loop"
	KindSendImage      Kind = "send-image"
	KindInlineKeyboard Kind = "inline-keyboard"
	KindCompute        Kind = "compute"
	KindCartOp         Kind = "cart-op"
	KindPayment        Kind = "payment"
	KindRecordStore    Kind = "record-store"
	KindCatalog        Kind = "catalog"
	KindIntakeForm     Kind = "intake-form"
	KindNotify         Kind = "notify"
	KindOrderConfirm   Kind = "order-confirm"
	KindLLMPrompt      Kind = "llm-prompt"
)

// allKinds lists every kind in catalog order.
var allKinds = []Kind{
	KindStart, KindMessage, KindQuestion, KindChoice, KindCondition,
	KindDelay, KindSetVariable, KindLoop, KindSendImage, KindInlineKeyboard,
	KindCompute, KindCartOp, KindPayment, KindRecordStore, KindCatalog,
	KindIntakeForm, KindNotify, KindOrderConfirm, KindLLMPrompt,
}

// Kinds returns every known node kind in catalog order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Port names an output slot on a node.
type Port string

// Well-known port names. Inline keyboard ports are named after their
// button callback tags and are not listed here.
const (
	PortDefault  Port = "default"
	PortTrue     Port = "true"
	PortFalse    Port = "false"
	PortLoopBody Port = "loop_body"
	PortConfirm  Port = "confirm"
	PortEdit     Port = "edit"
	PortCancel   Port = "cancel"
)

// Node is a single block on the canvas. Connection slots (Input, Outputs)
// mirror the store's edge list and are maintained by the store's operations.
type Node struct {
	ID     string
	Kind   Kind
	X, Y   float64
	Config Config

	// Input holds the ID of the single inbound edge, or "" when none.
	Input string
	// Outputs maps live output ports to outbound edge IDs.
	Outputs map[Port]string
}

// Edge is a directed connection between an output port and a node's input.
type Edge struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromPort Port   `json:"fromPort"`
	To       string `json:"to"`
}

// Config is the kind-specific configuration of a node.
// Concrete types are one per kind; there is no generic property bag.
type Config interface {
	// Kind reports which node kind this config belongs to.
	Kind() Kind
	// Clone returns a deep copy.
	Clone() Config
}

// Button is one inline keyboard button.
type Button struct {
	Label    string `json:"text"`
	Callback string `json:"callback_data"`
}

// LoopMode selects how a loop node iterates.
type LoopMode string

// Loop modes.
const (
	LoopCount LoopMode = "count"
	LoopWhile LoopMode = "while"
	LoopList  LoopMode = "list"
)

// CartAction selects a cart operation.
type CartAction string

// Cart actions.
const (
	CartAdd    CartAction = "add"
	CartRemove CartAction = "remove"
	CartShow   CartAction = "show"
	CartClear  CartAction = "clear"
	CartCount  CartAction = "count"
)

// RecordOp selects a record store operation.
type RecordOp string

// Record store operations.
const (
	RecordSave   RecordOp = "save"
	RecordLoad   RecordOp = "load"
	RecordDelete RecordOp = "delete"
)

// CatalogSource selects the product list format of a catalog node.
type CatalogSource string

// Catalog source formats.
const (
	CatalogJSON CatalogSource = "json"
	CatalogCSV  CatalogSource = "csv"
)

// NotifyTarget selects where a notify node delivers.
type NotifyTarget string

// Notify targets.
const (
	// NotifyAdmin delivers to the chat ID configured on the node.
	NotifyAdmin NotifyTarget = "admin"
	// NotifyChatVariable delivers to the chat ID held in a session variable.
	NotifyChatVariable NotifyTarget = "custom"
)

// FieldKind identifies a well-known intake form field.
// Unknown kinds are prompted with the raw kind text.
type FieldKind string

// Intake form field kinds.
const (
	FieldName    FieldKind = "name"
	FieldPhone   FieldKind = "phone"
	FieldEmail   FieldKind = "email"
	FieldAddress FieldKind = "address"
	FieldComment FieldKind = "comment"
)

// FormField is one sequential prompt of an intake form.
type FormField struct {
	Kind     FieldKind `json:"type"`
	Variable string    `json:"variable"`
}

// StartConfig configures a start node.
type StartConfig struct {
	Greeting string
}

func (c *StartConfig) Kind() Kind    { return KindStart }
func (c *StartConfig) Clone() Config { cp := *c; return &cp }

// MessageConfig configures a message node.
type MessageConfig struct {
	Text string
}

func (c *MessageConfig) Kind() Kind    { return KindMessage }
func (c *MessageConfig) Clone() Config { cp := *c; return &cp }

// QuestionConfig configures a question node.
type QuestionConfig struct {
	Prompt   string
	Variable string
}

func (c *QuestionConfig) Kind() Kind    { return KindQuestion }
func (c *QuestionConfig) Clone() Config { cp := *c; return &cp }

// ChoiceConfig configures a choice node.
type ChoiceConfig struct {
	Prompt   string
	Options  []string
	Variable string
}

func (c *ChoiceConfig) Kind() Kind { return KindChoice }
func (c *ChoiceConfig) Clone() Config {
	cp := *c
	cp.Options = append([]string(nil), c.Options...)
	return &cp
}

// ConditionConfig configures a condition node.
type ConditionConfig struct {
	Variable string
	Op       expr.Op
	Value    string
}

func (c *ConditionConfig) Kind() Kind    { return KindCondition }
func (c *ConditionConfig) Clone() Config { cp := *c; return &cp }

// DelayConfig configures a delay node. Seconds below 1 run as 1.
type DelayConfig struct {
	Seconds int
}

func (c *DelayConfig) Kind() Kind    { return KindDelay }
func (c *DelayConfig) Clone() Config { cp := *c; return &cp }

// SetVariableConfig configures a set-variable node.
type SetVariableConfig struct {
	Variable string
	Value    string
}

func (c *SetVariableConfig) Kind() Kind    { return KindSetVariable }
func (c *SetVariableConfig) Clone() Config { cp := *c; return &cp }

// LoopConfig configures a loop node. Only the fields of the selected mode
// are consulted at runtime.
type LoopConfig struct {
	Mode            LoopMode
	Count           int
	CounterVariable string

	WhileVariable string
	WhileOp       expr.Op
	WhileValue    string

	ListItems    string
	ListVariable string
}

func (c *LoopConfig) Kind() Kind    { return KindLoop }
func (c *LoopConfig) Clone() Config { cp := *c; return &cp }

// SendImageConfig configures a send-image node.
type SendImageConfig struct {
	File    string
	Caption string
}

func (c *SendImageConfig) Kind() Kind    { return KindSendImage }
func (c *SendImageConfig) Clone() Config { cp := *c; return &cp }

// InlineKeyboardConfig configures an inline-keyboard node.
type InlineKeyboardConfig struct {
	Message string
	Buttons []Button
}

func (c *InlineKeyboardConfig) Kind() Kind { return KindInlineKeyboard }
func (c *InlineKeyboardConfig) Clone() Config {
	cp := *c
	cp.Buttons = append([]Button(nil), c.Buttons...)
	return &cp
}

// ComputeConfig configures a compute node.
type ComputeConfig struct {
	Formula        string
	ResultVariable string
}

func (c *ComputeConfig) Kind() Kind    { return KindCompute }
func (c *ComputeConfig) Clone() Config { cp := *c; return &cp }

// CartOpConfig configures a cart-op node. ProductVariable and
// QuantityVariable name session variables, not literal values.
type CartOpConfig struct {
	Action           CartAction
	ProductVariable  string
	QuantityVariable string
}

func (c *CartOpConfig) Kind() Kind    { return KindCartOp }
func (c *CartOpConfig) Clone() Config { cp := *c; return &cp }

// PaymentConfig configures a payment node.
type PaymentConfig struct {
	Title          string
	Description    string
	AmountVariable string
	Currency       string
	ProviderToken  string
}

func (c *PaymentConfig) Kind() Kind    { return KindPayment }
func (c *PaymentConfig) Clone() Config { cp := *c; return &cp }

// RecordStoreConfig configures a record-store node.
type RecordStoreConfig struct {
	Op             RecordOp
	Key            string
	DataVariable   string
	ResultVariable string
}

func (c *RecordStoreConfig) Kind() Kind    { return KindRecordStore }
func (c *RecordStoreConfig) Clone() Config { cp := *c; return &cp }

// CatalogConfig configures a catalog node. Products holds the raw product
// list in the selected source format.
type CatalogConfig struct {
	Source   CatalogSource
	Products string
}

func (c *CatalogConfig) Kind() Kind    { return KindCatalog }
func (c *CatalogConfig) Clone() Config { cp := *c; return &cp }

// IntakeFormConfig configures an intake-form node.
type IntakeFormConfig struct {
	Fields         []FormField
	SuccessMessage string
}

func (c *IntakeFormConfig) Kind() Kind { return KindIntakeForm }
func (c *IntakeFormConfig) Clone() Config {
	cp := *c
	cp.Fields = append([]FormField(nil), c.Fields...)
	return &cp
}

// NotifyConfig configures a notify node.
type NotifyConfig struct {
	Target       NotifyTarget
	AdminChatID  string
	ChatVariable string
	Message      string
}

func (c *NotifyConfig) Kind() Kind    { return KindNotify }
func (c *NotifyConfig) Clone() Config { cp := *c; return &cp }

// OrderConfirmConfig configures an order-confirm node.
type OrderConfirmConfig struct {
	Title       string
	Template    string
	ShowConfirm bool
	ShowEdit    bool
	ShowCancel  bool
}

func (c *OrderConfirmConfig) Kind() Kind    { return KindOrderConfirm }
func (c *OrderConfirmConfig) Clone() Config { cp := *c; return &cp }

// LLMPromptConfig configures an llm-prompt node.
type LLMPromptConfig struct {
	Prompt         string
	Model          string
	MaxTokens      int
	Temperature    float64
	ResultVariable string
}

func (c *LLMPromptConfig) Kind() Kind    { return KindLLMPrompt }
func (c *LLMPromptConfig) Clone() Config { cp := *c; return &cp }
