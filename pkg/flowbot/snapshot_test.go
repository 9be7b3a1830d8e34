package flowbot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbot-dev/flowbot/pkg/flowbot/expr"
)

// buildShopGraph wires a small flow exercising several kinds.
func buildShopGraph(t *testing.T) *GraphStore {
	t.Helper()
	g := NewGraphStore()
	g.SetSettings(Settings{BotName: "shop", BotToken: "123:abc"})

	start, err := g.CreateNode(KindStart, 0, 0)
	require.NoError(t, err)
	q, err := g.CreateNode(KindQuestion, 200, 0)
	require.NoError(t, err)
	require.NoError(t, g.SetConfig(q.ID, &QuestionConfig{Prompt: "Как вас зовут?", Variable: "name"}))
	cond, err := g.CreateNode(KindCondition, 400, 0)
	require.NoError(t, err)
	require.NoError(t, g.SetConfig(cond.ID, &ConditionConfig{Variable: "name", Op: expr.OpNotEmpty}))
	hi, err := g.CreateNode(KindMessage, 600, -80)
	require.NoError(t, err)
	require.NoError(t, g.SetConfig(hi.ID, &MessageConfig{Text: "Привет, {name}!"}))
	bye, err := g.CreateNode(KindMessage, 600, 80)
	require.NoError(t, err)

	mustConnect(t, g, start.ID, PortDefault, q.ID)
	mustConnect(t, g, q.ID, PortDefault, cond.ID)
	mustConnect(t, g, cond.ID, PortTrue, hi.ID)
	mustConnect(t, g, cond.ID, PortFalse, bye.ID)
	return g
}

func mustConnect(t *testing.T, g *GraphStore, from string, port Port, to string) {
	t.Helper()
	_, err := g.Connect(from, port, to)
	require.NoError(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildShopGraph(t)

	first, err := g.ExportJSON()
	require.NoError(t, err)

	loaded, err := LoadJSON(first)
	require.NoError(t, err)
	second, err := loaded.ExportJSON()
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, g.Counter(), loaded.Counter())
	assert.Equal(t, g.Settings(), loaded.Settings())
	assert.Len(t, loaded.Edges(), 4)
}

func TestSnapshotPreservesConfigs(t *testing.T) {
	g := buildShopGraph(t)
	data, err := g.ExportJSON()
	require.NoError(t, err)
	loaded, err := LoadJSON(data)
	require.NoError(t, err)

	q, err := loaded.Node("block_2")
	require.NoError(t, err)
	qc := q.Config.(*QuestionConfig)
	assert.Equal(t, "Как вас зовут?", qc.Prompt)
	assert.Equal(t, "name", qc.Variable)

	cond, err := loaded.Node("block_3")
	require.NoError(t, err)
	assert.Equal(t, expr.OpNotEmpty, cond.Config.(*ConditionConfig).Op)
}

func TestLoadSkipsUnknownKinds(t *testing.T) {
	snap := &Snapshot{
		Blocks: map[string]*BlockRecord{
			"block_1": {ID: "block_1", Type: KindStart, Text: "hi"},
			"block_2": {ID: "block_2", Type: Kind("hologram")},
		},
		BlockCounter: 2,
	}
	g, err := Load(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	_, err = g.Node("block_2")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestLoadBumpsCounterAboveBlockIDs(t *testing.T) {
	snap := &Snapshot{
		Blocks: map[string]*BlockRecord{
			"block_7": {ID: "block_7", Type: KindMessage, Text: "x"},
		},
		BlockCounter: 2, // stale counter from a corrupted save
	}
	g, err := Load(snap)
	require.NoError(t, err)

	n, err := g.CreateNode(KindMessage, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "block_8", n.ID)
}

func TestLoadFoldsLegacyConnections(t *testing.T) {
	snap := &Snapshot{
		Blocks: map[string]*BlockRecord{
			"block_1": {ID: "block_1", Type: KindStart, LegacyOutput: "block_2"},
			"block_2": {
				ID: "block_2", Type: KindCondition, Variable: "v", Condition: "equals",
				LegacyTrueOutput:  "block_3",
				LegacyFalseOutput: "block_4",
			},
			"block_3": {ID: "block_3", Type: KindMessage, Text: "yes"},
			"block_4": {ID: "block_4", Type: KindMessage, Text: "no"},
		},
		BlockCounter: 4,
	}
	g, err := Load(snap)
	require.NoError(t, err)
	require.Len(t, g.Edges(), 3)

	start, _ := g.Node("block_1")
	cond, _ := g.Node("block_2")
	assert.NotEmpty(t, start.Outputs[PortDefault])
	assert.NotEmpty(t, cond.Outputs[PortTrue])
	assert.NotEmpty(t, cond.Outputs[PortFalse])

	// Re-export never writes the legacy fields back.
	data, err := g.ExportJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "trueOutput")
}

func TestLoadPrefersEdgeListOverLegacy(t *testing.T) {
	snap := &Snapshot{
		Blocks: map[string]*BlockRecord{
			"block_1": {ID: "block_1", Type: KindStart, LegacyOutput: "block_3"},
			"block_2": {ID: "block_2", Type: KindMessage, Text: "new"},
			"block_3": {ID: "block_3", Type: KindMessage, Text: "old"},
		},
		Connections: []*Edge{
			{ID: "e1", From: "block_1", FromPort: PortDefault, To: "block_2"},
		},
		BlockCounter: 3,
	}
	g, err := Load(snap)
	require.NoError(t, err)
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, "block_2", g.Edges()[0].To)
}

func TestLoadRepairsForeignSnapshot(t *testing.T) {
	snap := &Snapshot{
		Blocks: map[string]*BlockRecord{
			"block_1": {ID: "block_1", Type: KindStart},
			"block_2": {ID: "block_2", Type: KindMessage},
		},
		Connections: []*Edge{
			{ID: "e1", From: "block_1", FromPort: PortDefault, To: "block_2"},
			{ID: "e2", From: "block_1", FromPort: Port("warp"), To: "block_2"},
			{ID: "e3", From: "block_9", FromPort: PortDefault, To: "block_2"},
			{ID: "e4", From: "block_2", FromPort: PortDefault, To: "block_2"},
		},
		BlockCounter: 2,
	}
	g, err := Load(snap)
	require.NoError(t, err)
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, "e1", g.Edges()[0].ID)
}

func TestLoadNilSnapshot(t *testing.T) {
	_, err := Load(nil)
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestLoadJSONMalformed(t *testing.T) {
	_, err := LoadJSON([]byte("{not json"))
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestLoadMintsMissingEdgeIDs(t *testing.T) {
	snap := &Snapshot{
		Blocks: map[string]*BlockRecord{
			"block_1": {ID: "block_1", Type: KindStart},
			"block_2": {ID: "block_2", Type: KindMessage},
		},
		Connections: []*Edge{
			{From: "block_1", FromPort: PortDefault, To: "block_2"},
		},
		BlockCounter: 2,
	}
	g, err := Load(snap)
	require.NoError(t, err)
	require.Len(t, g.Edges(), 1)
	assert.NotEmpty(t, g.Edges()[0].ID)
}

func TestOrderConfirmFlagsSurviveRoundTrip(t *testing.T) {
	g := NewGraphStore()
	oc, _ := g.CreateNode(KindOrderConfirm, 0, 0)
	require.NoError(t, g.SetConfig(oc.ID, &OrderConfirmConfig{
		Title: "Ваш заказ", ShowConfirm: false, ShowEdit: false, ShowCancel: true,
	}))

	data, err := g.ExportJSON()
	require.NoError(t, err)
	loaded, err := LoadJSON(data)
	require.NoError(t, err)

	n, err := loaded.Node(oc.ID)
	require.NoError(t, err)
	cfg := n.Config.(*OrderConfirmConfig)
	assert.False(t, cfg.ShowConfirm, "explicit false must not revert to the default")
	assert.False(t, cfg.ShowEdit)
	assert.True(t, cfg.ShowCancel)
}

func TestBlockRecordJSONFieldNames(t *testing.T) {
	g := NewGraphStore()
	n, _ := g.CreateNode(KindLoop, 0, 0)
	require.NoError(t, g.SetConfig(n.ID, &LoopConfig{
		Mode: LoopWhile, WhileVariable: "flag", WhileOp: expr.OpEquals, WhileValue: "on",
	}))

	data, err := g.ExportJSON()
	require.NoError(t, err)

	var snap map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &snap))

	raw := string(data)
	assert.Contains(t, raw, `"loop_type":"while"`)
	assert.Contains(t, raw, `"while_variable":"flag"`)
	assert.Contains(t, raw, `"while_condition":"equals"`)
	assert.Contains(t, raw, `"while_value":"on"`)
}
