// Package userstore persists the allowed users and the log channel in a JSON file
package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
	boterrors "github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/errors"
	"github.com/alex-away/tg-ytdl-gofile/pkg/fileutil"
)

// fileState is the on-disk layout
type fileState struct {
	AllowedUsers []int64 `json:"allowed_users"`
	LogChannelID int64   `json:"log_channel_id"`
}

// Store is the JSON-backed permission list. Sudo users come from configuration
// and are never written to the file.
type Store struct {
	path   string
	logger zerolog.Logger

	mu         sync.RWMutex
	sudo       map[int64]struct{}
	allowed    map[int64]struct{}
	logChannel int64
}

// New creates a store; call Load before use.
// seedUsers and seedLogChannel only apply when the file does not exist yet.
func New(path string, sudo, seedUsers []int64, seedLogChannel int64, logger zerolog.Logger) *Store {
	s := &Store{
		path:       path,
		logger:     logger,
		sudo:       make(map[int64]struct{}, len(sudo)),
		allowed:    make(map[int64]struct{}, len(seedUsers)),
		logChannel: seedLogChannel,
	}
	for _, id := range sudo {
		s.sudo[id] = struct{}{}
	}
	for _, id := range seedUsers {
		if _, isSudo := s.sudo[id]; !isSudo {
			s.allowed[id] = struct{}{}
		}
	}
	return s
}

// Load reads the file. Once the file exists it is the only source of allowed
// users, so a removed user stays removed across restarts. A missing file is
// created from the seed.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.persist(s.allowed, s.logChannel); err != nil {
			return err
		}
		s.logger.Info().
			Str("path", s.path).
			Int("allowed", len(s.allowed)).
			Msg("User store file not found, seeded from configuration")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read user store: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse user store %s: %w", s.path, err)
	}

	allowed := make(map[int64]struct{}, len(state.AllowedUsers))
	for _, id := range state.AllowedUsers {
		if _, isSudo := s.sudo[id]; !isSudo {
			allowed[id] = struct{}{}
		}
	}
	s.allowed = allowed
	if state.LogChannelID != 0 {
		s.logChannel = state.LogChannelID
	}

	s.logger.Info().
		Int("sudo", len(s.sudo)).
		Int("allowed", len(s.allowed)).
		Int64("log_channel_id", s.logChannel).
		Msg("User store loaded")

	return nil
}

// Tier returns the tier of a user
func (s *Store) Tier(id int64) entities.Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sudo[id]; ok {
		return entities.TierSudo
	}
	if _, ok := s.allowed[id]; ok {
		return entities.TierAllowed
	}
	return entities.TierUnauthorized
}

// Add grants the allowed tier. Adding a user who already has access is a no-op.
func (s *Store) Add(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sudo[id]; ok {
		return false, nil
	}
	if _, ok := s.allowed[id]; ok {
		return false, nil
	}

	next := cloneSet(s.allowed)
	next[id] = struct{}{}
	if err := s.persist(next, s.logChannel); err != nil {
		return false, err
	}
	s.allowed = next
	return true, nil
}

// Remove revokes the allowed tier
func (s *Store) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sudo[id]; ok {
		return boterrors.ErrSudoImmutable
	}
	if _, ok := s.allowed[id]; !ok {
		return boterrors.ErrUserNotFound
	}

	next := cloneSet(s.allowed)
	delete(next, id)
	if err := s.persist(next, s.logChannel); err != nil {
		return err
	}
	s.allowed = next
	return nil
}

// List returns sudo users then allowed users, each sorted by id
func (s *Store) List() []entities.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]entities.UserRecord, 0, len(s.sudo)+len(s.allowed))
	for _, id := range sortedIDs(s.sudo) {
		records = append(records, entities.UserRecord{ID: id, Tier: entities.TierSudo})
	}
	for _, id := range sortedIDs(s.allowed) {
		records = append(records, entities.UserRecord{ID: id, Tier: entities.TierAllowed})
	}
	return records
}

// LogChannel returns the configured log channel, 0 when unset
func (s *Store) LogChannel() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logChannel
}

// SetLogChannel stores a new log channel
func (s *Store) SetLogChannel(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(s.allowed, id); err != nil {
		return err
	}
	s.logChannel = id
	return nil
}

// persist writes the given state; the caller swaps memory only on success
func (s *Store) persist(allowed map[int64]struct{}, logChannel int64) error {
	data, err := json.MarshalIndent(fileState{
		AllowedUsers: sortedIDs(allowed),
		LogChannelID: logChannel,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user store: %w", err)
	}

	if err := fileutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist user store")
		return fmt.Errorf("persist user store: %w", err)
	}
	return nil
}

func cloneSet(in map[int64]struct{}) map[int64]struct{} {
	out := make(map[int64]struct{}, len(in)+1)
	for id := range in {
		out[id] = struct{}{}
	}
	return out
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
