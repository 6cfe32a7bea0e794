package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// NodeID is a value object representing a unique node identifier.
// IDs are generated once at creation and never reused.
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// ParseNodeID creates a NodeID from an existing string
func ParseNodeID(id string) (NodeID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalText implements encoding.TextMarshaler
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *NodeID) UnmarshalText(data []byte) error {
	id.value = string(data)
	return nil
}

// EdgeID is a value object representing a unique edge identifier
type EdgeID struct {
	value string
}

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID{value: uuid.New().String()}
}

// ParseEdgeID creates an EdgeID from an existing string
func ParseEdgeID(id string) (EdgeID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return EdgeID{}, errors.New("edge ID cannot be empty")
	}
	return EdgeID{value: id}, nil
}

func (id EdgeID) String() string {
	return id.value
}

func (id EdgeID) IsZero() bool {
	return id.value == ""
}

func (id EdgeID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

func (id *EdgeID) UnmarshalText(data []byte) error {
	id.value = string(data)
	return nil
}

// TabID identifies a tab. Unlike node and edge ids it is human readable:
// a tab's id doubles as its display name until the tab is renamed.
type TabID string

// String returns the string representation of the TabID
func (id TabID) String() string {
	return string(id)
}

// IsZero checks if the TabID is empty
func (id TabID) IsZero() bool {
	return id == ""
}
