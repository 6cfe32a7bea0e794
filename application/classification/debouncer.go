package classification

import (
	"context"
	"sync"
	"time"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// TabSource is the part of the TabStore the debouncer needs
type TabSource interface {
	Get(id valueobjects.TabID) (entities.Tab, error)
	ApplyClassification(id valueobjects.TabID, fingerprint string, cls entities.Classification) (entities.Tab, error)
}

// StaleChecker recognises the error a TabSource returns for a superseded
// result
type StaleChecker func(err error) bool

type pending struct {
	timer clockwork.Timer
	gen   uint64
	hint  entities.ContentKind
}

// Debouncer runs a tab's classification once its content has been stable
// for the quiet period. Every edit restarts the timer. When the timer
// fires the tab's current content is classified and the result applied
// only if the content has not changed in the meantime.
type Debouncer struct {
	mu      sync.Mutex
	pending map[valueobjects.TabID]*pending
	gen     uint64
	closed  bool
	wg      sync.WaitGroup

	delay      time.Duration
	classifier Classifier
	tabs       TabSource
	isStale    StaleChecker
	clock      clockwork.Clock
	logger     *zap.Logger
}

// NewDebouncer creates a debouncer. isStale may be nil.
func NewDebouncer(classifier Classifier, tabs TabSource, delay time.Duration, clock clockwork.Clock, isStale StaleChecker, logger *zap.Logger) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if isStale == nil {
		isStale = func(error) bool { return false }
	}
	return &Debouncer{
		pending:    make(map[valueobjects.TabID]*pending),
		delay:      delay,
		classifier: classifier,
		tabs:       tabs,
		isStale:    isStale,
		clock:      clock,
		logger:     logger,
	}
}

// Attach schedules a classification on every tab creation and content edit
// published on bus. The returned function detaches.
func (d *Debouncer) Attach(bus *appevents.Bus) func() {
	return bus.Subscribe("classification-debouncer", func(_ context.Context, e events.DomainEvent) error {
		if te, ok := e.(events.TabEvent); ok {
			d.Touch(te.TabID, "")
		}
		return nil
	}, appevents.ForTypes(events.TypeTabCreated, events.TypeTabUpdated))
}

// Touch (re)starts the quiet period for a tab. A non-empty hint replaces
// the tab's pending hint.
func (d *Debouncer) Touch(id valueobjects.TabID, hint entities.ContentKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	p, ok := d.pending[id]
	if ok {
		p.timer.Stop()
		if hint == "" {
			hint = p.hint
		}
	}

	d.gen++
	gen := d.gen
	p = &pending{gen: gen, hint: hint}
	p.timer = d.clock.AfterFunc(d.delay, func() { d.fire(id, gen) })
	d.pending[id] = p
}

// Cancel drops a tab's pending classification, e.g. when the tab is deleted
func (d *Debouncer) Cancel(id valueobjects.TabID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[id]; ok {
		p.timer.Stop()
		delete(d.pending, id)
	}
}

// Pending reports whether a classification is scheduled for the tab
func (d *Debouncer) Pending(id valueobjects.TabID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[id]
	return ok
}

// Close stops all timers and waits for running classifications
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	for id, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Debouncer) fire(id valueobjects.TabID, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[id]
	// a timer that was stopped too late to prevent it from firing
	if !ok || p.gen != gen || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, id)
	hint := p.hint
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	d.run(id, hint)
}

func (d *Debouncer) run(id valueobjects.TabID, hint entities.ContentKind) {
	tab, err := d.tabs.Get(id)
	if err != nil {
		d.logger.Debug("Tab vanished before classification", zap.String("tabID", id.String()))
		return
	}
	fingerprint := tab.Fingerprint()

	result := d.classifier.Classify(context.Background(), tab.Content, hint)

	if _, err := d.tabs.ApplyClassification(id, fingerprint, result.Classification); err != nil {
		if d.isStale(err) {
			d.logger.Debug("Discarded classification for edited tab", zap.String("tabID", id.String()))
			return
		}
		d.logger.Warn("Failed to apply classification",
			zap.String("tabID", id.String()),
			zap.Error(err),
		)
		return
	}

	d.logger.Debug("Tab classified",
		zap.String("tabID", id.String()),
		zap.String("kind", string(result.Classification.Kind)),
		zap.String("source", string(result.Source)),
	)
}
