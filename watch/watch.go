package watch

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"d2sedit/types"
	"d2sedit/writers"
)

// STATE_FILE lives in the watched directory and remembers the last version of every save seen.
const STATE_FILE = "d2swatch.json"

// Event reports what changed in one save file since the last time it was seen.
// First is set (and Changes empty) when the file had never been seen before.
type Event struct {
	File    string
	Class   string
	Level   uint8
	First   bool
	Changes []types.Change
}

type Watcher interface {
	Start(events chan<- *Event) error
	Stop()
}

// New returns a watcher for dir.  settle is how long to leave the game alone with a file
// after it has been written before reading it.
func New(dir string, settle time.Duration) Watcher {
	return &dir_watcher{
		dir:    dir,
		settle: settle,
		quit:   make(chan struct{}),
		state:  state_type{Snapshots: map[string][]byte{}},
	}
}

type state_type struct {
	// raw file contents, keyed by base name
	Snapshots map[string][]byte
}

type dir_watcher struct {
	dir     string
	settle  time.Duration
	watcher *fsnotify.Watcher
	quit    chan struct{}
	stop    sync.Once
	done    sync.WaitGroup

	state state_type
}

func (dw *dir_watcher) Start(events chan<- *Event) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dw.watcher = watcher
	dw.load_state()

	dw.done.Add(1)
	go func() {
		defer dw.done.Done()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && is_save(event.Name) {
					dw.handle_file(event.Name, events)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watch %s: %v", dw.dir, err)
			}
		}
	}()

	err = dw.watcher.Add(dw.dir)
	if err != nil {
		dw.Stop()
	}
	return err
}

// Stop closes the watcher and waits for the event loop to finish; no events are sent after it returns.
func (dw *dir_watcher) Stop() {
	dw.stop.Do(func() {
		close(dw.quit)
		dw.watcher.Close()
	})
	dw.done.Wait()
}

func is_save(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".d2s") && !writers.IsBackup(base)
}

func (dw *dir_watcher) state_file() string {
	return filepath.Join(dw.dir, STATE_FILE)
}

func (dw *dir_watcher) save_state() {
	b, err := json.Marshal(dw.state)
	if err != nil {
		log.Printf("failed to encode watch state: %v", err)
		return
	}
	if err := writers.WriteFileAtomic(dw.state_file(), b, 0644); err != nil {
		log.Printf("failed to save watch state: %v", err)
	}
}

func (dw *dir_watcher) load_state() {
	b, err := os.ReadFile(dw.state_file())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("failed to load watch state: %v", err)
		}
		return
	}
	state := state_type{}
	if err := json.Unmarshal(b, &state); err != nil {
		log.Printf("ignoring unreadable watch state %s: %v", dw.state_file(), err)
		return
	}
	if state.Snapshots == nil {
		state.Snapshots = map[string][]byte{}
	}
	dw.state = state
}

func (dw *dir_watcher) handle_file(filename string, out chan<- *Event) {
	// Wait for the game itself to finish with the file
	select {
	case <-time.After(dw.settle):
	case <-dw.quit:
		return
	}

	sd, err := types.Load(filename)
	if err != nil {
		log.Printf("failed to load %s: %v", filename, err)
		return
	}

	key := filepath.Base(filename)
	event := &Event{File: filename, Class: sd.Class().String(), Level: sd.Level()}

	if snap, ok := dw.state.Snapshots[key]; ok {
		before, err := types.Parse(snap)
		if err != nil {
			// the snapshot came from an older, broken file; start over from this one
			log.Printf("discarding snapshot of %s: %v", key, err)
			event.First = true
		} else {
			event.Changes = types.Diff(before, sd)
			if len(event.Changes) == 0 {
				return
			}
		}
	} else {
		event.First = true
	}

	dw.state.Snapshots[key] = sd.Data
	dw.save_state()
	select {
	case out <- event:
	case <-dw.quit:
	}
}
