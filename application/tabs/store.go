// Package tabs holds the ordered collection of text documents that feed the
// canvas. Tabs are independent of the graph: nodes reference them weakly.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/domain/config"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	"github.com/frenb/accelent/domain/services"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrStaleClassification is returned when a classification result arrives
// for content the tab no longer shows.
var ErrStaleClassification = errors.New("classification is for superseded content")

const defaultTabName = "Untitled"

// Store is the TabStore
type Store struct {
	mu    sync.Mutex
	tabs  []entities.Tab
	index map[valueobjects.TabID]int

	config *config.DomainConfig
	bus    *appevents.Bus
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewStore creates an empty tab store publishing on bus
func NewStore(bus *appevents.Bus, cfg *config.DomainConfig, clock clockwork.Clock, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = appevents.NewBus(logger)
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		index:  make(map[valueobjects.TabID]int),
		config: cfg,
		bus:    bus,
		clock:  clock,
		logger: logger,
	}
}

// Bus returns the event bus the store publishes on
func (s *Store) Bus() *appevents.Bus {
	return s.bus
}

// Subscribe registers a handler for tab events
func (s *Store) Subscribe(name string, handler appevents.HandlerFunc, filters ...appevents.Filter) func() {
	return s.bus.Subscribe(name, handler, filters...)
}

func (s *Store) publish(evts ...events.DomainEvent) {
	s.bus.Enqueue(evts...)
}

func (s *Store) unlockAndDrain() {
	s.mu.Unlock()
	s.bus.Drain(context.Background())
}

// Create adds a tab. An empty id is derived from the name; an empty name
// becomes "Untitled". Ids must be unique.
func (s *Store) Create(id valueobjects.TabID, name, content string) (entities.Tab, error) {
	s.mu.Lock()
	defer s.unlockAndDrain()

	name = strings.TrimSpace(name)
	if id.IsZero() {
		base := name
		if base == "" {
			base = defaultTabName
		}
		id = s.freeID(base)
	}
	if _, exists := s.index[id]; exists {
		return entities.Tab{}, pkgerrors.NewConflictError(fmt.Sprintf("tab %q already exists", id))
	}

	tab := entities.NewTab(id, name, content)
	s.index[id] = len(s.tabs)
	s.tabs = append(s.tabs, tab)
	s.publish(events.NewTabCreated(tab, s.clock.Now()))

	s.logger.Debug("Tab created", zap.String("tabID", id.String()), zap.Int("contentLength", len(content)))
	return tab, nil
}

// CreateOutputTab materialises a node output as a new tab named
// "<label> Output", numbered when that name is taken.
func (s *Store) CreateOutputTab(nodeLabel, content string) (entities.Tab, error) {
	s.mu.Lock()
	names := make([]string, 0, len(s.tabs)*2)
	for _, t := range s.tabs {
		names = append(names, t.Name, t.ID.String())
	}
	name := services.UniqueOutputTabName(nodeLabel, names, s.config.OutputTabSuffix)
	s.mu.Unlock()

	return s.Create(valueobjects.TabID(name), name, content)
}

// UpdateContent replaces a tab's text. The previous classification stays
// until a classification for the new content is applied.
func (s *Store) UpdateContent(id valueobjects.TabID, content string) (entities.Tab, error) {
	s.mu.Lock()
	defer s.unlockAndDrain()

	i, ok := s.index[id]
	if !ok {
		return entities.Tab{}, pkgerrors.NewNotFoundError("tab")
	}
	if s.tabs[i].Content == content {
		return s.tabs[i], nil
	}
	s.tabs[i].Content = content
	s.tabs[i].Version++
	s.publish(events.NewTabUpdated(s.tabs[i], s.clock.Now()))
	return s.tabs[i], nil
}

// Rename changes a tab's display name; the id is kept
func (s *Store) Rename(id valueobjects.TabID, name string) (entities.Tab, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entities.Tab{}, pkgerrors.NewValidationError("tab name cannot be empty")
	}

	s.mu.Lock()
	defer s.unlockAndDrain()

	i, ok := s.index[id]
	if !ok {
		return entities.Tab{}, pkgerrors.NewNotFoundError("tab")
	}
	if s.tabs[i].Name == name {
		return s.tabs[i], nil
	}
	s.tabs[i].Name = name
	s.publish(events.NewTabRenamed(s.tabs[i], s.clock.Now()))
	return s.tabs[i], nil
}

// Delete removes a tab. Nodes created from it keep their back-reference.
func (s *Store) Delete(id valueobjects.TabID) error {
	s.mu.Lock()
	defer s.unlockAndDrain()

	i, ok := s.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError("tab")
	}
	tab := s.tabs[i]
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	s.index = make(map[valueobjects.TabID]int, len(s.tabs))
	for k, t := range s.tabs {
		s.index[t.ID] = k
	}
	s.publish(events.NewTabDeleted(tab, s.clock.Now()))
	return nil
}

// ApplyClassification stores a classification computed for the content
// identified by fingerprint. If the tab has been edited since, the result
// is discarded and ErrStaleClassification returned.
func (s *Store) ApplyClassification(id valueobjects.TabID, fingerprint string, cls entities.Classification) (entities.Tab, error) {
	s.mu.Lock()
	defer s.unlockAndDrain()

	i, ok := s.index[id]
	if !ok {
		return entities.Tab{}, pkgerrors.NewNotFoundError("tab")
	}
	if s.tabs[i].Fingerprint() != fingerprint {
		s.logger.Debug("Discarded stale classification", zap.String("tabID", id.String()))
		return s.tabs[i], ErrStaleClassification
	}
	s.tabs[i].Classification = cls
	s.publish(events.NewTabClassified(s.tabs[i], s.clock.Now()))
	return s.tabs[i], nil
}

// Get returns one tab
func (s *Store) Get(id valueobjects.TabID) (entities.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return entities.Tab{}, pkgerrors.NewNotFoundError("tab")
	}
	return s.tabs[i], nil
}

// List returns all tabs in creation order
func (s *Store) List() []entities.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entities.Tab, len(s.tabs))
	copy(out, s.tabs)
	return out
}

func (s *Store) freeID(base string) valueobjects.TabID {
	id := valueobjects.TabID(base)
	if _, taken := s.index[id]; !taken {
		return id
	}
	for n := 2; ; n++ {
		id = valueobjects.TabID(fmt.Sprintf("%s %d", base, n))
		if _, taken := s.index[id]; !taken {
			return id
		}
	}
}
