package graph

import (
	"context"
	"sync"
	"testing"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/domain/config"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addAt(t *testing.T, s *Store, kind entities.Kind, label string, x, y float64) entities.Node {
	t.Helper()
	pos := valueobjects.MustPosition(x, y)
	res, err := s.AddNode(AddNodeRequest{Kind: kind, Label: label, Position: &pos})
	require.NoError(t, err)
	return res.Node
}

func mustNode(t *testing.T, s *Store, id valueobjects.NodeID) entities.Node {
	t.Helper()
	n, err := s.Node(id)
	require.NoError(t, err)
	return n
}

type recorder struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (r *recorder) handle(_ context.Context, e events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.GetEventType()
	}
	return out
}

func TestStore_AddNode_Palette(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	s := NewStore(WithDomainConfig(cfg))

	first, err := s.AddNode(AddNodeRequest{Kind: entities.KindDataSource})
	require.NoError(t, err)
	assert.Nil(t, first.Edge)
	assert.Equal(t, "Data Source", first.Node.Label)
	assert.InDelta(t, cfg.CanvasWidth/2, first.Node.Position.X(), 1e-9)
	assert.InDelta(t, cfg.CanvasHeight*cfg.TopFraction, first.Node.Position.Y(), 1e-9)

	second, err := s.AddNode(AddNodeRequest{Kind: entities.KindPrompt})
	require.NoError(t, err)
	require.NotNil(t, second.Edge)
	assert.Equal(t, first.Node.ID, second.Edge.Source)
	assert.Equal(t, second.Node.ID, second.Edge.Target)
	assert.InDelta(t, first.Node.Position.X(), second.Node.Position.X(), 1e-9)
	assert.InDelta(t, first.Node.Position.Y()+cfg.VerticalSpacing, second.Node.Position.Y(), 1e-9)

	third, err := s.AddNode(AddNodeRequest{Kind: entities.KindDisplay})
	require.NoError(t, err)
	require.NotNil(t, third.Edge)
	assert.Equal(t, second.Node.ID, third.Edge.Source, "connects to the lowest node")
}

func TestStore_AddNode_UniqueLabels(t *testing.T) {
	s := NewStore()

	var labels []string
	for i := 0; i < 3; i++ {
		res, err := s.AddNode(AddNodeRequest{Kind: entities.KindDataSource, Label: "Source"})
		require.NoError(t, err)
		labels = append(labels, res.Node.Label)
	}
	assert.Equal(t, []string{"Source", "Source (Copy 1)", "Source (Copy 2)"}, labels)
}

func TestStore_AddNode_FromTab(t *testing.T) {
	s := NewStore()
	tab := entities.NewTab("orders", "Orders", `[{"id":1}]`)
	tab.Classification = entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatJSON, Confidence: 0.9}

	res, err := s.AddNode(AddNodeRequest{Kind: entities.KindDataSource, Tab: &tab})
	require.NoError(t, err)

	assert.Equal(t, "Orders", res.Node.Label)
	assert.Equal(t, valueobjects.TabID("orders"), res.Node.TabID)
	assert.Equal(t, entities.DataSourceConfig{Format: entities.FormatJSON, Data: `[{"id":1}]`}, res.Node.Config)
}

func TestStore_AddNode_Drop(t *testing.T) {
	s := NewStore()
	anchor := addAt(t, s, entities.KindDataSource, "Anchor", 0, 50)
	addAt(t, s, entities.KindDisplay, "Far", 2000, 2000)

	tests := []struct {
		name        string
		dropY       float64
		newIsSource bool
	}{
		{name: "above anchor", dropY: 10, newIsSource: true},
		{name: "below anchor", dropY: 90, newIsSource: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.AddNode(AddNodeRequest{
				Kind: entities.KindPrompt,
				Drop: &ScreenPoint{X: 5, Y: tt.dropY},
			})
			require.NoError(t, err)
			require.NotNil(t, res.Edge)

			assert.InDelta(t, 5, res.Node.Position.X(), 1e-9)
			assert.InDelta(t, tt.dropY, res.Node.Position.Y(), 1e-9)
			if tt.newIsSource {
				assert.Equal(t, res.Node.ID, res.Edge.Source)
				assert.Equal(t, anchor.ID, res.Edge.Target)
			} else {
				assert.Equal(t, anchor.ID, res.Edge.Source)
				assert.Equal(t, res.Node.ID, res.Edge.Target)
			}

			// keep the anchor the nearest node for the next case
			require.NoError(t, s.RemoveNode(res.Node.ID))
		})
	}
}

func TestStore_AddNode_ExplicitPositionSkipsAutoConnect(t *testing.T) {
	s := NewStore()
	addAt(t, s, entities.KindDataSource, "A", 0, 0)

	pos := valueobjects.MustPosition(0, 500)
	res, err := s.AddNode(AddNodeRequest{Kind: entities.KindDisplay, Position: &pos})
	require.NoError(t, err)
	assert.Nil(t, res.Edge)
	assert.Empty(t, s.Snapshot().Edges)
}

func TestStore_AddNode_Validation(t *testing.T) {
	s := NewStore()

	_, err := s.AddNode(AddNodeRequest{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = s.AddNode(AddNodeRequest{Kind: entities.KindPrompt, Config: entities.DisplayConfig{}})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestStore_Connect(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindPrompt, "B", 0, 100)

	t.Run("self loop is a no-op", func(t *testing.T) {
		edge, ok, err := s.Connect(a.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, edge.ID.IsZero())
		assert.Empty(t, s.Snapshot().Edges)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, _, err := s.Connect(a.ID, valueobjects.NewNodeID())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("propagates current output", func(t *testing.T) {
		require.NoError(t, s.UpdateNodeOutput(a.ID, `{"a":1}`))

		edge, ok, err := s.Connect(a.ID, b.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, a.ID, edge.Source)

		got := mustNode(t, s, b.ID)
		assert.Equal(t, `{"a":1}`, got.Input)
		assert.Nil(t, got.Output)
	})

	t.Run("duplicate manual edges are permitted", func(t *testing.T) {
		_, ok, err := s.Connect(a.ID, b.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, s.Snapshot().Incoming(b.ID), 2)
	})
}

func TestStore_PropagationInvariant(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindPrompt, "B", 0, 100)
	c := addAt(t, s, entities.KindDisplay, "C", 0, 200)

	_, _, err := s.Connect(a.ID, b.ID)
	require.NoError(t, err)
	_, _, err = s.Connect(b.ID, c.ID)
	require.NoError(t, err)

	// unresolved sources propagate as empty input
	assert.Equal(t, "", mustNode(t, s, b.ID).Input)
	assert.Equal(t, "", mustNode(t, s, c.ID).Input)

	require.NoError(t, s.UpdateNodeOutput(a.ID, "data"))
	assert.Equal(t, "data", mustNode(t, s, b.ID).Input)
	// one hop at a time: c waits for b's runtime
	assert.Equal(t, "", mustNode(t, s, c.ID).Input)

	require.NoError(t, s.UpdateNodeOutput(b.ID, "summary"))
	assert.Equal(t, "summary", mustNode(t, s, c.ID).Input)

	snap := s.Snapshot()
	for _, e := range snap.Edges {
		src, _ := snap.Node(e.Source)
		dst, _ := snap.Node(e.Target)
		assert.Equal(t, src.OutputOrEmpty(), dst.Input)
	}
}

func TestStore_OutputChangeOnlyInvalidatesOnNewInput(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindDisplay, "B", 0, 100)
	_, _, err := s.Connect(a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.UpdateNodeOutput(a.ID, "same"))
	require.NoError(t, s.UpdateNodeOutput(b.ID, "same"))
	before := mustNode(t, s, b.ID)

	require.NoError(t, s.UpdateNodeOutput(a.ID, "same"))
	after := mustNode(t, s, b.ID)

	assert.Equal(t, before.Revision, after.Revision)
	require.NotNil(t, after.Output)
	assert.Equal(t, "same", *after.Output)
}

func TestStore_Disconnect(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	m := addAt(t, s, entities.KindPrompt, "M", 0, 100)

	require.NoError(t, s.UpdateNodeOutput(a.ID, "x"))
	edge, _, err := s.Connect(a.ID, m.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateNodeOutput(m.ID, "computed"))

	require.NoError(t, s.Disconnect(edge.ID))

	got := mustNode(t, s, m.ID)
	assert.Equal(t, "", got.Input)
	assert.Nil(t, got.Output)

	err = s.Disconnect(edge.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_Disconnect_FallsBackToRemainingEdge(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindDataSource, "B", 100, 0)
	m := addAt(t, s, entities.KindDisplay, "M", 50, 100)

	require.NoError(t, s.UpdateNodeOutput(a.ID, "from a"))
	require.NoError(t, s.UpdateNodeOutput(b.ID, "from b"))

	_, _, err := s.Connect(a.ID, m.ID)
	require.NoError(t, err)
	eb, _, err := s.Connect(b.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "from b", mustNode(t, s, m.ID).Input, "newest edge wins")

	require.NoError(t, s.UpdateNodeOutput(a.ID, "a changed"))
	assert.Equal(t, "a changed", mustNode(t, s, m.ID).Input, "most recently changed source wins")

	require.NoError(t, s.Disconnect(eb.ID))
	assert.Equal(t, "a changed", mustNode(t, s, m.ID).Input)
}

func TestStore_RemoveNode_Cascades(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindPrompt, "B", 0, 100)
	c := addAt(t, s, entities.KindDisplay, "C", 0, 200)

	require.NoError(t, s.UpdateNodeOutput(a.ID, `{"a":1}`))
	_, _, err := s.Connect(a.ID, b.ID)
	require.NoError(t, err)
	_, _, err = s.Connect(c.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, mustNode(t, s, b.ID).Input)

	require.NoError(t, s.RemoveNode(a.ID))

	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	assert.Empty(t, snap.Edges)
	got, ok := snap.Node(b.ID)
	require.True(t, ok)
	assert.Equal(t, "", got.Input)
	assert.Nil(t, got.Output)

	_, err = s.Node(a.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(s.RemoveNode(a.ID)))
}

func TestStore_ClearedOutputReachesTargets(t *testing.T) {
	tests := []struct {
		name  string
		clear func(t *testing.T, s *Store, a, b entities.Node)
	}{
		{
			name: "source input becomes unusable",
			clear: func(t *testing.T, s *Store, a, b entities.Node) {
				require.NoError(t, s.UpdateNodeOutput(a.ID, "plain words"))
				rev := mustNode(t, s, b.ID).Revision
				require.NoError(t, s.ApplyNodeOutput(b.ID, rev, nil, entities.StatusNoData))
			},
		},
		{
			name: "upstream node removed",
			clear: func(t *testing.T, s *Store, a, b entities.Node) {
				require.NoError(t, s.RemoveNode(a.ID))
				rev := mustNode(t, s, b.ID).Revision
				require.NoError(t, s.ApplyNodeOutput(b.ID, rev, nil, entities.StatusIdle))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
			b := addAt(t, s, entities.KindSpreadsheet, "B", 0, 100)
			c := addAt(t, s, entities.KindDisplay, "C", 0, 200)
			_, _, err := s.Connect(a.ID, b.ID)
			require.NoError(t, err)
			_, _, err = s.Connect(b.ID, c.ID)
			require.NoError(t, err)

			require.NoError(t, s.UpdateNodeOutput(a.ID, `[{"a":1}]`))
			require.NoError(t, s.UpdateNodeOutput(b.ID, "https://docs.example.com/B"))
			require.NoError(t, s.UpdateNodeOutput(c.ID, "https://docs.example.com/B"))

			tt.clear(t, s, a, b)

			got := mustNode(t, s, c.ID)
			assert.Equal(t, "", got.Input)
			assert.Nil(t, got.Output)
			assert.Equal(t, entities.StatusIdle, got.Status)
		})
	}
}

func TestStore_SettlingClearedOutputKeepsFanIn(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindSpreadsheet, "B", 100, 0)
	m := addAt(t, s, entities.KindDisplay, "M", 50, 100)

	_, _, err := s.Connect(b.ID, m.ID)
	require.NoError(t, err)
	_, _, err = s.Connect(a.ID, m.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateNodeOutput(a.ID, "from a"))

	outputs := &recorder{}
	s.Subscribe("outputs", outputs.handle, appevents.ForTypes(events.TypeNodeOutputChanged))

	rev := mustNode(t, s, b.ID).Revision
	require.NoError(t, s.ApplyNodeOutput(b.ID, rev, nil, entities.StatusNoData))

	assert.Equal(t, "from a", mustNode(t, s, m.ID).Input)
	assert.Equal(t, entities.StatusNoData, mustNode(t, s, b.ID).Status)
	assert.Empty(t, outputs.types())
}

func TestStore_RenameNode(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "Source", 0, 0)
	b := addAt(t, s, entities.KindDataSource, "Other", 0, 100)

	label, err := s.RenameNode(a.ID, "Source")
	require.NoError(t, err)
	assert.Equal(t, "Source", label, "own label is not taken")

	label, err = s.RenameNode(b.ID, "Source")
	require.NoError(t, err)
	assert.Equal(t, "Source (Copy 1)", label)

	_, err = s.RenameNode(b.ID, "  ")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestStore_ConfigureNode(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	require.NoError(t, s.UpdateNodeOutput(a.ID, "old"))

	t.Run("same kind keeps kind and clears output", func(t *testing.T) {
		node, err := s.ConfigureNode(a.ID, entities.DataSourceConfig{Format: entities.FormatCSV, Data: "a,b"})
		require.NoError(t, err)
		assert.Equal(t, entities.KindDataSource, node.Kind())
		assert.Nil(t, node.Output)
	})

	t.Run("other kind retypes", func(t *testing.T) {
		node, err := s.ConfigureNode(a.ID, entities.PromptConfig{Prompt: "Summarize INPUT"})
		require.NoError(t, err)
		assert.Equal(t, entities.KindPrompt, node.Kind())
		assert.Equal(t, a.ID, node.ID)
	})
}

func TestStore_ApplyTabToNode(t *testing.T) {
	s := NewStore()
	src := addAt(t, s, entities.KindDataSource, "Src", 0, 0)
	target := addAt(t, s, entities.KindDataSource, "Target", 0, 100)

	require.NoError(t, s.UpdateNodeOutput(src.ID, "upstream"))
	_, _, err := s.Connect(src.ID, target.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateNodeOutput(target.ID, "stale"))

	tab := entities.NewTab("summary", "Summary Prompt", "Summarize INPUT")
	tab.Classification = entities.Classification{Kind: entities.ContentPrompt, Confidence: 0.95}

	node, err := s.ApplyTabToNode(tab, target.ID)
	require.NoError(t, err)

	assert.Equal(t, "Summary Prompt", node.Label)
	assert.Equal(t, entities.KindPrompt, node.Kind())
	assert.Equal(t, entities.PromptConfig{Prompt: "Summarize INPUT"}, node.Config)
	assert.Equal(t, "upstream", node.Input, "input is preserved")
	assert.Nil(t, node.Output)
	assert.Equal(t, valueobjects.TabID("summary"), node.TabID)
	assert.Len(t, s.Snapshot().Edges, 1, "no edge is created")

	t.Run("same kind replaces content only", func(t *testing.T) {
		other := entities.NewTab("other", "Other Prompt", "Translate INPUT")
		other.Classification = entities.Classification{Kind: entities.ContentPrompt, Confidence: 0.9}

		node, err := s.ApplyTabToNode(other, target.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.PromptConfig{Prompt: "Translate INPUT"}, node.Config)
		assert.Equal(t, "Other Prompt", node.Label)
	})
}

func TestStore_ApplyNodeOutput_Checked(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindPrompt, "B", 0, 100)
	_, _, err := s.Connect(a.ID, b.ID)
	require.NoError(t, err)

	started := mustNode(t, s, b.ID).Revision

	// the input moves on while b's computation is in flight
	require.NoError(t, s.UpdateNodeOutput(a.ID, "newer"))

	err = s.ApplyNodeOutput(b.ID, started, entities.StringPtr("stale result"), entities.StatusResolved)
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.Nil(t, mustNode(t, s, b.ID).Output)

	current := mustNode(t, s, b.ID).Revision
	require.NoError(t, s.ApplyNodeOutput(b.ID, current, entities.StringPtr("fresh"), entities.StatusResolved))
	got := mustNode(t, s, b.ID)
	require.NotNil(t, got.Output)
	assert.Equal(t, "fresh", *got.Output)
	assert.Equal(t, entities.StatusResolved, got.Status)
}

func TestStore_SnapshotIsImmutable(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	require.NoError(t, s.UpdateNodeOutput(a.ID, "v1"))

	snap := s.Snapshot()
	*snap.Nodes[0].Output = "mutated"
	snap.Nodes[0].Label = "mutated"

	got := mustNode(t, s, a.ID)
	assert.Equal(t, "v1", *got.Output)
	assert.Equal(t, "A", got.Label)
}

func TestStore_SetViewport(t *testing.T) {
	s := NewStore()

	err := s.SetViewport(valueobjects.Viewport{Width: 0, Height: 10, Zoom: 1})
	assert.True(t, pkgerrors.IsValidation(err))

	require.NoError(t, s.SetViewport(valueobjects.Viewport{Width: 1000, Height: 500, Zoom: 1}))
	res, err := s.AddNode(AddNodeRequest{Kind: entities.KindDisplay})
	require.NoError(t, err)
	assert.InDelta(t, 500, res.Node.Position.X(), 1e-9)
	assert.InDelta(t, 75, res.Node.Position.Y(), 1e-9)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindDisplay, "B", 0, 100)

	all := &recorder{}
	onlyB := &recorder{}
	outputs := &recorder{}

	unsubscribe := s.Subscribe("all", all.handle)
	s.Subscribe("b", onlyB.handle, appevents.ForNodes(b.ID))
	s.Subscribe("outputs", outputs.handle, appevents.ForTypes(events.TypeNodeOutputChanged))

	_, _, err := s.Connect(a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateNodeOutput(a.ID, "x"))

	assert.Equal(t, []string{
		events.TypeEdgeConnected,
		events.TypeNodeInputChanged,
		events.TypeNodeOutputChanged,
		events.TypeNodeStatusChanged,
		events.TypeNodeInputChanged,
	}, all.types())
	assert.Equal(t, []string{
		events.TypeEdgeConnected,
		events.TypeNodeInputChanged,
		events.TypeNodeInputChanged,
	}, onlyB.types())
	assert.Equal(t, []string{events.TypeNodeOutputChanged}, outputs.types())

	unsubscribe()
	require.NoError(t, s.MoveNode(a.ID, valueobjects.MustPosition(10, 10)))
	assert.Len(t, all.types(), 5)
}

func TestStore_HandlerMayCallBackIntoStore(t *testing.T) {
	s := NewStore()
	a := addAt(t, s, entities.KindDataSource, "A", 0, 0)
	b := addAt(t, s, entities.KindDisplay, "B", 0, 100)
	_, _, err := s.Connect(a.ID, b.ID)
	require.NoError(t, err)

	// a display that echoes its input, applied from inside the handler
	s.Subscribe("echo", func(_ context.Context, e events.DomainEvent) error {
		changed := e.(events.NodeInputChanged)
		return s.ApplyNodeOutput(changed.NodeID, changed.Revision, entities.StringPtr(changed.Input), entities.StatusResolved)
	}, appevents.ForNodes(b.ID), appevents.ForTypes(events.TypeNodeInputChanged))

	require.NoError(t, s.UpdateNodeOutput(a.ID, "hello"))

	got := mustNode(t, s, b.ID)
	require.NotNil(t, got.Output)
	assert.Equal(t, "hello", *got.Output)
}
