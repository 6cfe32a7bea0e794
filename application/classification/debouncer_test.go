package classification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/frenb/accelent/application/tabs"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClassifier struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	calls    []time.Time
	contents []string
	block    chan struct{}
	result   entities.Classification
}

func (c *recordingClassifier) Classify(_ context.Context, content string, _ entities.ContentKind) Result {
	c.mu.Lock()
	c.calls = append(c.calls, c.clock.Now())
	c.contents = append(c.contents, content)
	block := c.block
	c.mu.Unlock()

	if block != nil {
		<-block
	}
	return Result{Classification: c.result, Source: SourceGenerator}
}

func (c *recordingClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func isStale(err error) bool {
	return errors.Is(err, tabs.ErrStaleClassification)
}

func TestDebouncer_CoalescesEdits(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	store := tabs.NewStore(nil, nil, clock, nil)
	classifier := &recordingClassifier{
		clock:  clock,
		result: entities.Classification{Kind: entities.ContentPrompt, Confidence: 0.9},
	}
	d := NewDebouncer(classifier, store, time.Second, clock, isStale, nil)
	defer d.Close()

	tab, err := store.Create("t", "", "")
	require.NoError(t, err)

	// edits at t=0, t=0.4 and t=0.8
	for i, content := range []string{"S", "Summ", "Summarize INPUT"} {
		if i > 0 {
			clock.Advance(400 * time.Millisecond)
		}
		_, err := store.UpdateContent(tab.ID, content)
		require.NoError(t, err)
		d.Touch(tab.ID, "")
	}

	clock.Advance(999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, classifier.callCount(), "nothing runs before the quiet period ends")

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return classifier.callCount() == 1 }, time.Second, 5*time.Millisecond)

	classifier.mu.Lock()
	assert.Equal(t, 1800*time.Millisecond, classifier.calls[0].Sub(start))
	assert.Equal(t, "Summarize INPUT", classifier.contents[0])
	classifier.mu.Unlock()

	require.Eventually(t, func() bool {
		got, err := store.Get(tab.ID)
		return err == nil && got.Classification.Kind == entities.ContentPrompt
	}, time.Second, 5*time.Millisecond)

	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, classifier.callCount())
}

func TestDebouncer_DiscardsResultForEditedContent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := tabs.NewStore(nil, nil, clock, nil)
	classifier := &recordingClassifier{
		clock:  clock,
		block:  make(chan struct{}),
		result: entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatJSON, Confidence: 0.9},
	}
	d := NewDebouncer(classifier, store, time.Second, clock, isStale, nil)
	defer d.Close()

	tab, err := store.Create("t", "", `{"a":1}`)
	require.NoError(t, err)
	d.Touch(tab.ID, "")

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return classifier.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// the tab is edited while the call is in flight
	_, err = store.UpdateContent(tab.ID, "Summarize INPUT")
	require.NoError(t, err)
	close(classifier.block)

	d.Close()
	got, err := store.Get(tab.ID)
	require.NoError(t, err)
	assert.True(t, got.Classification.IsZero(), "stale result must not be applied")
}

func TestDebouncer_AttachFollowsTabEvents(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := tabs.NewStore(nil, nil, clock, nil)
	classifier := &recordingClassifier{
		clock:  clock,
		result: entities.Classification{Kind: entities.ContentDataset, Format: entities.FormatCSV, Confidence: 0.8},
	}
	d := NewDebouncer(classifier, store, time.Second, clock, isStale, nil)
	defer d.Close()

	detach := d.Attach(store.Bus())
	defer detach()

	tab, err := store.Create("csv", "", "a,b\n1,2")
	require.NoError(t, err)
	assert.True(t, d.Pending(tab.ID))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		got, err := store.Get(tab.ID)
		return err == nil && got.Classification.Format == entities.FormatCSV
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := tabs.NewStore(nil, nil, clock, nil)
	classifier := &recordingClassifier{clock: clock, result: entities.DefaultClassification()}
	d := NewDebouncer(classifier, store, time.Second, clock, isStale, nil)
	defer d.Close()

	tab, err := store.Create("t", "", "x")
	require.NoError(t, err)
	d.Touch(tab.ID, "")
	d.Cancel(tab.ID)
	assert.False(t, d.Pending(tab.ID))

	clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, classifier.callCount())
}
