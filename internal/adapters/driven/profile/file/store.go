// Package file loads character profiles from JSON files in a directory and
// keeps them current while the process runs.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.ProfileStore = (*Store)(nil)

// Store is a driven.ProfileStore over <dir>/*.json.
//
// Files that fail to parse or validate are skipped with a warning so one
// broken card never hides the others. When two files share an ID the one
// whose file name sorts first wins.
type Store struct {
	dir string

	mu       sync.RWMutex
	profiles map[string]domain.Profile

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewStore creates the profile directory if needed and loads every profile.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	s := &Store{dir: dir, profiles: make(map[string]domain.Profile)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the profile directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns the profile with the given ID.
func (s *Store) Get(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	p, ok := s.profiles[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no character profile %q in %s", domain.ErrNotFound, id, s.dir)
	}
	return &p, nil
}

// List returns all profiles sorted by ID.
func (s *Store) List(_ context.Context) ([]domain.Profile, error) {
	s.mu.RLock()
	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reload re-reads every profile file and replaces the loaded set.
func (s *Store) Reload() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	sort.Strings(paths)

	loaded := make(map[string]domain.Profile, len(paths))
	for _, path := range paths {
		p, err := readProfile(path)
		if err != nil {
			logger.Warn("skipping profile %s: %v", filepath.Base(path), err)
			continue
		}
		if _, dup := loaded[p.ID]; dup {
			logger.Warn("skipping profile %s: duplicate id %q", filepath.Base(path), p.ID)
			continue
		}
		loaded[p.ID] = p
	}

	s.mu.Lock()
	s.profiles = loaded
	s.mu.Unlock()

	logger.Debug("loaded %d character profiles from %s", len(loaded), s.dir)
	return nil
}

// profileFile accepts book_id as an older spelling of corpus_id.
type profileFile struct {
	domain.Profile
	BookID string `json:"book_id"`
}

func readProfile(path string) (domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Profile{}, err
	}
	var pf profileFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	p := pf.Profile
	if p.CorpusID == "" {
		p.CorpusID = pf.BookID
	}
	p.ID = strings.TrimSpace(p.ID)
	if err := p.Validate(); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// Watch reloads the profiles whenever a JSON file in the directory changes.
// It returns once the watcher is running; call Close to stop it.
func (s *Store) Watch() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	s.watcher = w
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.loop(w, s.done)
	return nil
}

func (s *Store) loop(w *fsnotify.Watcher, done <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-done:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("profile changed: %s", event.Name)
			if err := s.Reload(); err != nil {
				logger.Warn("reload profiles: %v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("profile watcher: %v", err)
		}
	}
}

// Close stops the watcher, if running.
func (s *Store) Close() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	s.watcher = nil
	return err
}
