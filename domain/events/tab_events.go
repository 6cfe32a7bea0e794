package events

import (
	"time"

	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// TabEvent carries a snapshot of the tab after the change
type TabEvent struct {
	BaseEvent
	TabID valueobjects.TabID `json:"tab_id"`
	Tab   entities.Tab       `json:"tab"`
}

func newTabEvent(eventType string, tab entities.Tab, timestamp time.Time) TabEvent {
	return TabEvent{
		BaseEvent: newBase(tab.ID.String(), eventType, timestamp),
		TabID:     tab.ID,
		Tab:       tab,
	}
}

// NewTabCreated creates a tab.created event
func NewTabCreated(tab entities.Tab, timestamp time.Time) TabEvent {
	return newTabEvent(TypeTabCreated, tab, timestamp)
}

// NewTabUpdated creates a tab.updated event for a content edit
func NewTabUpdated(tab entities.Tab, timestamp time.Time) TabEvent {
	return newTabEvent(TypeTabUpdated, tab, timestamp)
}

// NewTabRenamed creates a tab.renamed event
func NewTabRenamed(tab entities.Tab, timestamp time.Time) TabEvent {
	return newTabEvent(TypeTabRenamed, tab, timestamp)
}

// NewTabDeleted creates a tab.deleted event
func NewTabDeleted(tab entities.Tab, timestamp time.Time) TabEvent {
	return newTabEvent(TypeTabDeleted, tab, timestamp)
}

// NewTabClassified creates a tab.classified event
func NewTabClassified(tab entities.Tab, timestamp time.Time) TabEvent {
	return newTabEvent(TypeTabClassified, tab, timestamp)
}
