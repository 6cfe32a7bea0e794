package graph

import (
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	"go.uber.org/zap"
)

// Propagation keeps every target's input equal to the output of its
// effective upstream source. It runs one hop at a time: rewriting a
// target's input invalidates the target's output, and the next hop happens
// only when the target's runtime settles. A runtime that settles without
// an output (no usable data, nothing to compute) applies a nil output, and
// that clears its targets' inputs like any other output change.
//
// All functions here run with the store lock held.

// applyOutputLocked stores a runtime result and refreshes the direct
// downstream nodes.
func (s *Store) applyOutputLocked(t *tx, i int, output *string, status entities.NodeStatus) {
	node := s.nodes[i]
	oldStatus := node.Status

	s.nodes[i].Output = output
	s.nodes[i].Status = status
	// an output that stays cleared keeps its stamp so it cannot win fan-in
	if output != nil || node.Output != nil {
		s.tick++
		s.outputStamp[node.ID] = s.tick
		t.raise(events.NewNodeOutputChanged(node.ID, output, s.clock.Now()))
	}
	s.raiseStatus(t, oldStatus, s.nodes[i])

	for _, target := range s.downstreamOf(node.ID) {
		s.refreshTarget(t, target, false)
	}
}

// refreshTarget re-resolves a node's input from its incoming edges. When
// force is false the node is only rewritten if the resolved value differs
// from its current input, which keeps manually built cycles from
// re-triggering forever.
func (s *Store) refreshTarget(t *tx, id valueobjects.NodeID, force bool) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	node := s.nodes[i]
	input := s.resolveInput(id)
	if !force && input == node.Input {
		return
	}

	updated := node.WithInput(input)
	s.nodes[i] = updated
	t.raise(events.NewNodeInputChanged(updated, s.clock.Now()))
	s.raiseStatus(t, node.Status, updated)

	s.logger.Debug("Input propagated",
		zap.String("nodeID", id.String()),
		zap.Int("inputLength", len(input)),
		zap.Uint64("revision", updated.Revision),
	)
}

// resolveInput returns the output of the effective source of id, or "" when
// the node has no incoming edge or its source has no output yet.
//
// With several incoming edges the source that changed most recently wins.
// An edge's change time is the later of its own creation and its source's
// last output; ties go to the edge created first.
func (s *Store) resolveInput(id valueobjects.NodeID) string {
	var (
		best      *entities.Edge
		bestStamp uint64
	)
	for k := range s.edges {
		e := &s.edges[k]
		if e.Target != id {
			continue
		}
		stamp := e.Stamp
		if out := s.outputStamp[e.Source]; out > stamp {
			stamp = out
		}
		if best == nil || stamp > bestStamp {
			best, bestStamp = e, stamp
		}
	}
	if best == nil {
		return ""
	}
	i, ok := s.index[best.Source]
	if !ok {
		return ""
	}
	return s.nodes[i].OutputOrEmpty()
}

// downstreamOf lists the distinct targets fed by id, in edge order
func (s *Store) downstreamOf(id valueobjects.NodeID) []valueobjects.NodeID {
	var targets []valueobjects.NodeID
	for _, e := range s.edges {
		if e.Source == id {
			targets = append(targets, e.Target)
		}
	}
	return dedupe(targets)
}
