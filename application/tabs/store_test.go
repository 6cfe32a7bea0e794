package tabs

import (
	"context"
	"testing"

	appevents "github.com/frenb/accelent/application/events"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/frenb/accelent/domain/events"
	pkgerrors "github.com/frenb/accelent/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(nil, nil, nil, nil)
}

func TestStore_Create(t *testing.T) {
	s := newTestStore()

	tests := []struct {
		name     string
		id       valueobjects.TabID
		tabName  string
		wantID   valueobjects.TabID
		wantName string
		wantErr  bool
	}{
		{name: "explicit id", id: "data", tabName: "", wantID: "data", wantName: "data"},
		{name: "id from name", tabName: "Sales", wantID: "Sales", wantName: "Sales"},
		{name: "untitled", wantID: "Untitled", wantName: "Untitled"},
		{name: "second untitled", wantID: "Untitled 2", wantName: "Untitled 2"},
		{name: "duplicate id", id: "data", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab, err := s.Create(tt.id, tt.tabName, "content")
			if tt.wantErr {
				assert.True(t, pkgerrors.IsConflict(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, tab.ID)
			assert.Equal(t, tt.wantName, tab.Name)
		})
	}

	assert.Len(t, s.List(), 4)
}

func TestStore_UpdateRenameDelete(t *testing.T) {
	s := newTestStore()
	tab, err := s.Create("notes", "Notes", "v1")
	require.NoError(t, err)

	updated, err := s.UpdateContent(tab.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)
	assert.Equal(t, uint64(1), updated.Version)

	renamed, err := s.Rename(tab.ID, "Meeting notes")
	require.NoError(t, err)
	assert.Equal(t, "Meeting notes", renamed.Name)
	assert.Equal(t, valueobjects.TabID("notes"), renamed.ID)

	_, err = s.Rename(tab.ID, " ")
	assert.True(t, pkgerrors.IsValidation(err))

	require.NoError(t, s.Delete(tab.ID))
	_, err = s.Get(tab.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(s.Delete(tab.ID)))
}

func TestStore_ApplyClassification_Checked(t *testing.T) {
	s := newTestStore()
	tab, err := s.Create("data", "", `{"a":1}`)
	require.NoError(t, err)

	classifiedFingerprint := tab.Fingerprint()
	_, err = s.UpdateContent(tab.ID, "What is the capital of France?")
	require.NoError(t, err)

	_, err = s.ApplyClassification(tab.ID, classifiedFingerprint, entities.DefaultClassification())
	assert.ErrorIs(t, err, ErrStaleClassification)
	got, err := s.Get(tab.ID)
	require.NoError(t, err)
	assert.True(t, got.Classification.IsZero())

	cls := entities.Classification{Kind: entities.ContentPrompt, Confidence: 0.9}
	got, err = s.ApplyClassification(tab.ID, got.Fingerprint(), cls)
	require.NoError(t, err)
	assert.Equal(t, cls, got.Classification)
}

func TestStore_CreateOutputTab(t *testing.T) {
	s := newTestStore()

	first, err := s.CreateOutputTab("Prompt", "result 1")
	require.NoError(t, err)
	assert.Equal(t, "Prompt Output", first.Name)

	second, err := s.CreateOutputTab("Prompt", "result 2")
	require.NoError(t, err)
	assert.Equal(t, "Prompt Output 1", second.Name)

	third, err := s.CreateOutputTab("Prompt", "result 3")
	require.NoError(t, err)
	assert.Equal(t, "Prompt Output 2", third.Name)
	assert.Equal(t, "result 3", third.Content)
}

func TestStore_Events(t *testing.T) {
	bus := appevents.NewBus(nil)
	s := NewStore(bus, nil, nil, nil)

	var got []string
	bus.Subscribe("test", func(_ context.Context, e events.DomainEvent) error {
		got = append(got, e.GetEventType())
		return nil
	})

	tab, err := s.Create("t", "", "a")
	require.NoError(t, err)
	_, err = s.UpdateContent(tab.ID, "b")
	require.NoError(t, err)
	_, err = s.UpdateContent(tab.ID, "b")
	require.NoError(t, err)
	_, err = s.Rename(tab.ID, "T")
	require.NoError(t, err)
	require.NoError(t, s.Delete(tab.ID))

	assert.Equal(t, []string{
		events.TypeTabCreated,
		events.TypeTabUpdated,
		events.TypeTabRenamed,
		events.TypeTabDeleted,
	}, got)
}
