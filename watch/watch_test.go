package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"d2sedit/internal/testsave"
	"d2sedit/stats"
	"d2sedit/types"
)

func with_field(o testsave.Options, k stats.Kind, v uint32) testsave.Options {
	fields := append([]testsave.Field{}, o.Fields...)
	for i := range fields {
		if fields[i].Kind == k {
			fields[i].Value = v
		}
	}
	o.Fields = fields
	return o
}

func new_test_watcher(dir string) *dir_watcher {
	return New(dir, 0).(*dir_watcher)
}

func TestHandleFile_FirstSightingThenChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Anya.d2s")
	require.NoError(t, os.WriteFile(path, testsave.Build(testsave.Default()), 0644))

	dw := new_test_watcher(dir)
	events := make(chan *Event, 4)

	dw.handle_file(path, events)
	require.Len(t, events, 1)
	ev := <-events
	assert.True(t, ev.First)
	assert.Empty(t, ev.Changes)
	assert.Equal(t, "Sorceress", ev.Class)
	assert.Equal(t, uint8(30), ev.Level)

	// unchanged file: nothing to report
	dw.handle_file(path, events)
	assert.Len(t, events, 0)

	o := with_field(testsave.Default(), stats.Gold, 7500)
	o = with_field(o, stats.Strength, 50)
	require.NoError(t, os.WriteFile(path, testsave.Build(o), 0644))

	dw.handle_file(path, events)
	require.Len(t, events, 1)
	ev = <-events
	assert.False(t, ev.First)
	assert.Equal(t, []types.Change{
		{What: "Strength", Old: 45, New: 50},
		{What: "Gold", Old: 5000, New: 7500},
	}, ev.Changes)
}

func TestHandleFile_StatePersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Anya.d2s")
	require.NoError(t, os.WriteFile(path, testsave.Build(testsave.Default()), 0644))

	events := make(chan *Event, 4)
	new_test_watcher(dir).handle_file(path, events)
	<-events
	assert.FileExists(t, filepath.Join(dir, STATE_FILE))

	o := with_field(testsave.Default(), stats.Dexterity, 40)
	require.NoError(t, os.WriteFile(path, testsave.Build(o), 0644))

	// a new watcher picks up where the last one left off
	dw := new_test_watcher(dir)
	dw.load_state()
	dw.handle_file(path, events)
	require.Len(t, events, 1)
	ev := <-events
	assert.False(t, ev.First)
	assert.Equal(t, []types.Change{{What: "Dexterity", Old: 25, New: 40}}, ev.Changes)
}

func TestHandleFile_BadFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Broken.d2s")
	require.NoError(t, os.WriteFile(path, []byte("not a save"), 0644))

	dw := new_test_watcher(dir)
	events := make(chan *Event, 1)
	dw.handle_file(path, events)
	assert.Len(t, events, 0)
	assert.NoFileExists(t, filepath.Join(dir, STATE_FILE))
}

func TestLoadState_Garbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, STATE_FILE), []byte("{{{"), 0644))

	dw := new_test_watcher(dir)
	dw.load_state()
	assert.NotNil(t, dw.state.Snapshots)
	assert.Empty(t, dw.state.Snapshots)
}

func TestIsSave(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"/saves/Anya.d2s", true},
		{"/saves/ANYA.D2S", true},
		{"/saves/Anya.d2s.01ARZ3NDEKTSV4RRFFQ69G5FAV.bak", false},
		{"/saves/" + STATE_FILE, false},
		{"/saves/.Anya.d2s.1234.tmp", false},
		{"/saves/Anya.key", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, is_save(tt.name))
		})
	}
}

func TestStart_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, 10*time.Millisecond)
	events := make(chan *Event, 8)
	require.NoError(t, w.Start(events))
	defer w.Stop()

	path := filepath.Join(dir, "Anya.d2s")
	require.NoError(t, os.WriteFile(path, testsave.Build(testsave.Default()), 0644))

	select {
	case ev := <-events:
		assert.Equal(t, path, ev.File)
		assert.True(t, ev.First)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for a new save file")
	}
}

func TestStop_UnblocksPendingEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Anya.d2s")
	require.NoError(t, os.WriteFile(path, testsave.Build(testsave.Default()), 0644))

	dw := new_test_watcher(dir)
	events := make(chan *Event) // nobody reading
	finished := make(chan struct{})
	go func() {
		dw.handle_file(path, events)
		close(finished)
	}()

	time.Sleep(50 * time.Millisecond)
	close(dw.quit)
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("handle_file still blocked after quit")
	}
}

func TestStart_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope"), 0)
	assert.Error(t, w.Start(make(chan *Event, 1)))
}
