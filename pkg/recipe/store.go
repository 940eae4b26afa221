package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Store scans a recipe directory once and indexes the definitions by id and
// by every provided command name. Execution is single-threaded, so the load
// guard is a plain flag.
type Store struct {
	dir    string
	loaded bool

	byID      map[string]*Recipe
	byCommand map[string]string // provided command -> recipe id
}

// NewStore creates a store over the given recipes directory. Nothing is
// read until the first lookup.
func NewStore(dir string) *Store {
	return &Store{
		dir:       dir,
		byID:      make(map[string]*Recipe),
		byCommand: make(map[string]string),
	}
}

// Load scans the directory. Repeated calls are no-ops. Malformed definitions
// are skipped with a warning rather than aborting the whole load.
func (s *Store) Load() error {
	if s.loaded {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read recipes directory %s: %w", s.dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml")) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")

		rec, err := ParseFile(filepath.Join(s.dir, name), id)
		if err != nil {
			log.Warn().Err(err).Str("recipe", name).Msg("Skipping malformed recipe")
			continue
		}
		if _, dup := s.byID[id]; dup {
			log.Warn().Str("recipe", id).Msg("Skipping duplicate recipe id")
			continue
		}
		s.byID[id] = rec

		// Reverse index: every provided command maps back to the recipe, the
		// recipe name standing in when provides is absent.
		commands := rec.Provides
		if len(commands) == 0 {
			commands = []string{rec.Name}
		}
		for _, cmd := range commands {
			if _, taken := s.byCommand[cmd]; !taken {
				s.byCommand[cmd] = id
			}
		}
	}

	s.loaded = true
	log.Debug().Int("recipes", len(s.byID)).Str("dir", s.dir).Msg("Recipe scan complete")
	return nil
}

// Resolve maps a target reference (recipe id or provided command) to a
// recipe id. ok=false means the target is unknown.
func (s *Store) Resolve(target string) (string, bool) {
	if err := s.Load(); err != nil {
		log.Error().Err(err).Msg("Recipe scan failed")
		return "", false
	}
	if _, exists := s.byID[target]; exists {
		return target, true
	}
	id, exists := s.byCommand[target]
	return id, exists
}

// Get returns the recipe with the given id.
func (s *Store) Get(id string) (*Recipe, bool) {
	if err := s.Load(); err != nil {
		log.Error().Err(err).Msg("Recipe scan failed")
		return nil, false
	}
	rec, exists := s.byID[id]
	return rec, exists
}

// All returns every loaded recipe, sorted by id.
func (s *Store) All() ([]*Recipe, error) {
	if err := s.Load(); err != nil {
		return nil, err
	}
	recipes := make([]*Recipe, 0, len(s.byID))
	for _, rec := range s.byID {
		recipes = append(recipes, rec)
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })
	return recipes, nil
}
