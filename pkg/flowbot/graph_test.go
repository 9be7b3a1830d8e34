package flowbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNodeMintsSequentialIDs(t *testing.T) {
	g := NewGraphStore()

	a, err := g.CreateNode(KindStart, 0, 0)
	require.NoError(t, err)
	b, err := g.CreateNode(KindMessage, 100, 0)
	require.NoError(t, err)

	assert.Equal(t, "block_1", a.ID)
	assert.Equal(t, "block_2", b.ID)
	assert.Equal(t, 2, g.Counter())
}

func TestCreateNodeUnknownKind(t *testing.T) {
	g := NewGraphStore()
	_, err := g.CreateNode(Kind("warp"), 0, 0)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, 0, g.Counter())
	assert.Equal(t, 0, g.Len())
}

func TestIDsNeverReused(t *testing.T) {
	g := NewGraphStore()
	a, _ := g.CreateNode(KindMessage, 0, 0)
	require.NoError(t, g.DeleteNode(a.ID))

	b, err := g.CreateNode(KindMessage, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "block_2", b.ID)
}

func TestConnect(t *testing.T) {
	g := NewGraphStore()
	start, _ := g.CreateNode(KindStart, 0, 0)
	msg, _ := g.CreateNode(KindMessage, 100, 0)

	e, err := g.Connect(start.ID, PortDefault, msg.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, e.ID, start.Outputs[PortDefault])
	assert.Equal(t, e.ID, msg.Input)
	assert.Len(t, g.Edges(), 1)
}

func TestConnectRejections(t *testing.T) {
	setup := func(t *testing.T) (*GraphStore, *Node, *Node, *Node) {
		g := NewGraphStore()
		start, err := g.CreateNode(KindStart, 0, 0)
		require.NoError(t, err)
		a, err := g.CreateNode(KindMessage, 100, 0)
		require.NoError(t, err)
		b, err := g.CreateNode(KindMessage, 200, 0)
		require.NoError(t, err)
		return g, start, a, b
	}

	t.Run("missing source", func(t *testing.T) {
		g, _, a, _ := setup(t)
		_, err := g.Connect("block_99", PortDefault, a.ID)
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("missing target", func(t *testing.T) {
		g, start, _, _ := setup(t)
		_, err := g.Connect(start.ID, PortDefault, "block_99")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("self loop", func(t *testing.T) {
		g, _, a, _ := setup(t)
		_, err := g.Connect(a.ID, PortDefault, a.ID)
		assert.ErrorIs(t, err, ErrSelfLoop)
	})

	t.Run("unknown port", func(t *testing.T) {
		g, start, a, _ := setup(t)
		_, err := g.Connect(start.ID, Port("sideways"), a.ID)
		assert.ErrorIs(t, err, ErrUnknownPort)
	})

	t.Run("occupied port", func(t *testing.T) {
		g, start, a, b := setup(t)
		_, err := g.Connect(start.ID, PortDefault, a.ID)
		require.NoError(t, err)
		_, err = g.Connect(start.ID, PortDefault, b.ID)
		assert.ErrorIs(t, err, ErrPortOccupied)
		assert.Len(t, g.Edges(), 1)
	})

	t.Run("occupied input", func(t *testing.T) {
		g, start, a, b := setup(t)
		_, err := g.Connect(start.ID, PortDefault, a.ID)
		require.NoError(t, err)
		_, err = g.Connect(b.ID, PortDefault, a.ID)
		assert.ErrorIs(t, err, ErrInputOccupied)
		assert.Len(t, g.Edges(), 1)
	})
}

func TestConditionPortsConnectIndependently(t *testing.T) {
	g := NewGraphStore()
	cond, _ := g.CreateNode(KindCondition, 0, 0)
	yes, _ := g.CreateNode(KindMessage, 100, 0)
	no, _ := g.CreateNode(KindMessage, 200, 0)

	_, err := g.Connect(cond.ID, PortTrue, yes.ID)
	require.NoError(t, err)
	_, err = g.Connect(cond.ID, PortFalse, no.ID)
	require.NoError(t, err)
	assert.Len(t, g.Edges(), 2)
}

func TestDisconnect(t *testing.T) {
	g := NewGraphStore()
	start, _ := g.CreateNode(KindStart, 0, 0)
	msg, _ := g.CreateNode(KindMessage, 100, 0)
	e, _ := g.Connect(start.ID, PortDefault, msg.ID)

	require.NoError(t, g.Disconnect(e.ID))
	assert.Empty(t, start.Outputs)
	assert.Empty(t, msg.Input)
	assert.Empty(t, g.Edges())

	// Port and input are free again.
	_, err := g.Connect(start.ID, PortDefault, msg.ID)
	assert.NoError(t, err)
}

func TestDisconnectMissingEdge(t *testing.T) {
	g := NewGraphStore()
	assert.ErrorIs(t, g.Disconnect("nope"), ErrEdgeNotFound)
}

func TestDeleteNodeCascades(t *testing.T) {
	g := NewGraphStore()
	start, _ := g.CreateNode(KindStart, 0, 0)
	mid, _ := g.CreateNode(KindQuestion, 100, 0)
	end, _ := g.CreateNode(KindMessage, 200, 0)
	g.Connect(start.ID, PortDefault, mid.ID)
	g.Connect(mid.ID, PortDefault, end.ID)

	require.NoError(t, g.DeleteNode(mid.ID))

	assert.Equal(t, 2, g.Len())
	assert.Empty(t, g.Edges())
	assert.Empty(t, start.Outputs, "upstream slot must be cleared")
	assert.Empty(t, end.Input, "downstream slot must be cleared")

	_, err := g.Node(mid.ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDeleteStartNodeAllowed(t *testing.T) {
	g := NewGraphStore()
	start, _ := g.CreateNode(KindStart, 0, 0)
	assert.NoError(t, g.DeleteNode(start.ID))
}

func TestSetConfigKindMismatch(t *testing.T) {
	g := NewGraphStore()
	msg, _ := g.CreateNode(KindMessage, 0, 0)
	err := g.SetConfig(msg.ID, &DelayConfig{Seconds: 5})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestUpdateConfig(t *testing.T) {
	g := NewGraphStore()
	msg, _ := g.CreateNode(KindMessage, 0, 0)
	err := g.UpdateConfig(msg.ID, func(c Config) {
		c.(*MessageConfig).Text = "updated"
	})
	require.NoError(t, err)
	assert.Equal(t, "updated", msg.Config.(*MessageConfig).Text)
}
