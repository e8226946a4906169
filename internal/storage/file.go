package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

const fileWatchDebounce = 100 * time.Millisecond

// File is the local-only tier: a single JSON object on disk. Writes replace
// the file atomically, and Watch picks up edits made by other processes.
type File struct {
	path string

	mu       sync.Mutex
	snapshot map[string]json.RawMessage
	watcher  *fsnotify.Watcher
	done     chan struct{}
	watchers watchers
}

// NewFile returns the local tier stored at path. The parent directory is
// created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return AreaLocal }

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		return nil, err
	}
	if keys == nil {
		return all, nil
	}
	out := make(map[string]json.RawMessage)
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *File) Set(ctx context.Context, items map[string]json.RawMessage) error {
	f.mu.Lock()
	before, err := f.load()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	after := maps.Clone(before)
	maps.Copy(after, items)
	if err := f.store(after); err != nil {
		f.mu.Unlock()
		return err
	}
	watching := f.watcher != nil
	if watching {
		f.snapshot = after
	}
	f.mu.Unlock()

	f.watchers.emit(AreaLocal, diff(before, after))
	return nil
}

func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	before, err := f.load()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.mu.Unlock()
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, f.path, err)
	}
	if f.watcher != nil {
		f.snapshot = map[string]json.RawMessage{}
	}
	f.mu.Unlock()

	f.watchers.emit(AreaLocal, diff(before, nil))
	return nil
}

// Watch registers fn and, on first use, starts watching the backing file for
// changes made outside this process.
func (f *File) Watch(fn func(Change)) func() {
	stop := f.watchers.add(fn)
	if err := f.startWatcher(); err != nil {
		pterm.Debug.Printf("local storage watch disabled: %v\n", err)
	}
	return stop
}

// Close stops the file watcher, if running.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher == nil {
		return nil
	}
	close(f.done)
	err := f.watcher.Close()
	f.watcher = nil
	return err
}

func (f *File) startWatcher() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher != nil {
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	snapshot, err := f.load()
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// The directory is watched rather than the file so atomic renames are seen.
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}
	f.watcher = w
	f.snapshot = snapshot
	f.done = make(chan struct{})
	go f.watchLoop(w, f.done)
	return nil
}

func (f *File) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(fileWatchDebounce)
			}
		case <-debounce.C:
			f.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			pterm.Debug.Printf("local storage watch error: %v\n", err)
		}
	}
}

// reload re-reads the file and emits whatever differs from the last snapshot.
func (f *File) reload() {
	f.mu.Lock()
	if f.watcher == nil {
		f.mu.Unlock()
		return
	}
	after, err := f.load()
	if err != nil {
		f.mu.Unlock()
		pterm.Debug.Printf("local storage reload failed: %v\n", err)
		return
	}
	before := f.snapshot
	f.snapshot = after
	f.mu.Unlock()

	f.watchers.emit(AreaLocal, diff(before, after))
}

func (f *File) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, f.path, err)
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	out := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, f.path, err)
	}
	return out, nil
}

func (f *File) store(items map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %v", ErrUnavailable, f.path, err)
	}
	return nil
}
