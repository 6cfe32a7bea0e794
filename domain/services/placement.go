package services

import (
	"github.com/frenb/accelent/domain/config"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// Placement is the outcome of planning a new node: where it goes and which
// existing node, if any, it should be wired to.
type Placement struct {
	Position valueobjects.Position
	// Anchor is the existing node to auto-connect to. Zero when the graph
	// was empty.
	Anchor valueobjects.NodeID
	// NewIsSource is true when the edge runs new -> anchor.
	NewIsSource bool
}

// HasAnchor reports whether an auto-connect edge was requested
func (p Placement) HasAnchor() bool {
	return !p.Anchor.IsZero()
}

// EdgeFor returns the (source, target) of the auto-connect edge once the
// new node's id is known.
func (p Placement) EdgeFor(newID valueobjects.NodeID) (source, target valueobjects.NodeID, ok bool) {
	if !p.HasAnchor() {
		return valueobjects.NodeID{}, valueobjects.NodeID{}, false
	}
	if p.NewIsSource {
		return newID, p.Anchor, true
	}
	return p.Anchor, newID, true
}

// PlacementPlanner decides positions and auto-connect anchors for new nodes.
// It is pure: it reads the node list it is given and never mutates it.
type PlacementPlanner struct {
	config *config.DomainConfig
}

// NewPlacementPlanner creates a planner. A nil config uses the defaults.
func NewPlacementPlanner(cfg *config.DomainConfig) *PlacementPlanner {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &PlacementPlanner{config: cfg}
}

// PlanPalette places a node added from the palette.
//
// Empty graph: the canvas image of the screen point at the horizontal
// center and TopFraction of the visible height. Otherwise directly below
// the lowest node (greatest y, first in order on ties), connected from it.
func (p *PlacementPlanner) PlanPalette(nodes []entities.Node, vp valueobjects.Viewport) (Placement, error) {
	if len(nodes) == 0 {
		vp = p.normalize(vp)
		pos, err := vp.ScreenToCanvas(vp.Width/2, vp.Height*p.config.TopFraction)
		if err != nil {
			return Placement{}, err
		}
		return Placement{Position: pos}, nil
	}

	lowest := LowestNode(nodes)
	pos, err := lowest.Position.Translate(0, p.config.VerticalSpacing)
	if err != nil {
		return Placement{}, err
	}
	return Placement{Position: pos, Anchor: lowest.ID}, nil
}

// PlanDrop places a node dropped at a screen coordinate onto empty canvas.
func (p *PlacementPlanner) PlanDrop(nodes []entities.Node, vp valueobjects.Viewport, sx, sy float64) (Placement, error) {
	pos, err := p.normalize(vp).ScreenToCanvas(sx, sy)
	if err != nil {
		return Placement{}, err
	}
	return p.PlanDropAt(nodes, pos), nil
}

// PlanDropAt places a node exactly at a canvas position and picks the
// nearest existing node as anchor. The edge points from the visually
// higher node to the lower one: new -> anchor when the new node is above.
func (p *PlacementPlanner) PlanDropAt(nodes []entities.Node, pos valueobjects.Position) Placement {
	placement := Placement{Position: pos}
	anchor, ok := NearestNode(nodes, pos)
	if !ok {
		return placement
	}
	placement.Anchor = anchor.ID
	placement.NewIsSource = pos.Y() < anchor.Position.Y()
	return placement
}

func (p *PlacementPlanner) normalize(vp valueobjects.Viewport) valueobjects.Viewport {
	if vp.Width <= 0 {
		vp.Width = p.config.CanvasWidth
	}
	if vp.Height <= 0 {
		vp.Height = p.config.CanvasHeight
	}
	if vp.Zoom <= 0 {
		vp.Zoom = 1
	}
	return vp
}

// LowestNode returns the node with the greatest y; the first one wins ties.
// nodes must be non-empty.
func LowestNode(nodes []entities.Node) entities.Node {
	lowest := nodes[0]
	for _, n := range nodes[1:] {
		if n.Position.Y() > lowest.Position.Y() {
			lowest = n
		}
	}
	return lowest
}

// NearestNode returns the node closest to pos by Euclidean distance; the
// first one wins ties.
func NearestNode(nodes []entities.Node, pos valueobjects.Position) (entities.Node, bool) {
	if len(nodes) == 0 {
		return entities.Node{}, false
	}
	best := nodes[0]
	bestDist := pos.DistanceTo(best.Position)
	for _, n := range nodes[1:] {
		if d := pos.DistanceTo(n.Position); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, true
}
