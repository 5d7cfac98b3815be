// Package store persists flag definitions and their allowlists. Two
// implementations share one contract: InMemory for unit tests and dev mode,
// Postgres for production. Both return sentinel errors for infrastructure
// facts; services translate those into domain errors.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rollout/internal/flags/models"
	"rollout/pkg/platform/sentinel"
)

type flagKey struct {
	name string
	env  string
}

type flagRecord struct {
	flag    models.FeatureFlag
	tenants map[string]time.Time // subject -> added_at
	users   map[string]time.Time
}

// InMemory keeps flags in a mutex-guarded map. Per-key mutation
// serialization falls out of the single lock; it is coarser than the
// postgres row lock but observationally equivalent.
type InMemory struct {
	mu    sync.RWMutex
	flags map[flagKey]*flagRecord
}

func NewInMemory() *InMemory {
	return &InMemory{flags: make(map[flagKey]*flagRecord)}
}

func (s *InMemory) Get(_ context.Context, name, environment string) (*models.FeatureFlag, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.flags[flagKey{name, environment}]
	if !ok {
		return nil, false, nil
	}
	flag := rec.flag
	return &flag, true, nil
}

func (s *InMemory) GetWithAllowlists(_ context.Context, name, environment string) (*models.FeatureFlag, models.Allowlists, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.flags[flagKey{name, environment}]
	if !ok {
		return nil, models.Allowlists{}, false, nil
	}

	flag := rec.flag
	lists := models.Allowlists{
		Tenants: make(map[string]struct{}, len(rec.tenants)),
		Users:   make(map[string]struct{}, len(rec.users)),
	}
	for subject := range rec.tenants {
		lists.Tenants[subject] = struct{}{}
	}
	for subject := range rec.users {
		lists.Users[subject] = struct{}{}
	}
	return &flag, lists, true, nil
}

func (s *InMemory) List(_ context.Context, environment string) ([]*models.FeatureFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var flags []*models.FeatureFlag
	for key, rec := range s.flags {
		if key.env != environment {
			continue
		}
		flag := rec.flag
		flags = append(flags, &flag)
	}
	return flags, nil
}

func (s *InMemory) Create(_ context.Context, flag *models.FeatureFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := flagKey{flag.Name, flag.Environment}
	if _, exists := s.flags[key]; exists {
		return fmt.Errorf("%w: flag %s/%s", sentinel.ErrConflict, flag.Environment, flag.Name)
	}
	s.flags[key] = &flagRecord{
		flag:    *flag,
		tenants: make(map[string]time.Time),
		users:   make(map[string]time.Time),
	}
	return nil
}

func (s *InMemory) Update(_ context.Context, name, environment string, patch models.UpdatePatch, now time.Time) (*models.FeatureFlag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.flags[flagKey{name, environment}]
	if !ok {
		return nil, fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, environment, name)
	}
	rec.flag.ApplyPatch(patch, now)
	flag := rec.flag
	return &flag, nil
}

func (s *InMemory) Delete(_ context.Context, name, environment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := flagKey{name, environment}
	if _, ok := s.flags[key]; !ok {
		return fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, environment, name)
	}
	delete(s.flags, key)
	return nil
}

func (s *InMemory) AddToAllowlist(_ context.Context, entry *models.AllowlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.flags[flagKey{entry.FlagName, entry.Environment}]
	if !ok {
		return fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, entry.Environment, entry.FlagName)
	}

	set := rec.tenants
	if entry.Kind == models.KindUser {
		set = rec.users
	}
	// Set semantics: re-adding keeps the original AddedAt.
	if _, exists := set[entry.SubjectID]; !exists {
		set[entry.SubjectID] = entry.AddedAt
	}
	return nil
}

func (s *InMemory) RemoveFromAllowlist(_ context.Context, name, environment string, kind models.AllowlistKind, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.flags[flagKey{name, environment}]
	if !ok {
		return fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, environment, name)
	}

	set := rec.tenants
	if kind == models.KindUser {
		set = rec.users
	}
	delete(set, subjectID)
	return nil
}

func (s *InMemory) ListAllowlist(_ context.Context, name, environment string, kind models.AllowlistKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.flags[flagKey{name, environment}]
	if !ok {
		return nil, fmt.Errorf("%w: flag %s/%s", sentinel.ErrNotFound, environment, name)
	}

	set := rec.tenants
	if kind == models.KindUser {
		set = rec.users
	}
	subjects := make([]string, 0, len(set))
	for subject := range set {
		subjects = append(subjects, subject)
	}
	return subjects, nil
}
