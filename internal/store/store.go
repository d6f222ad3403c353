// Package store is the authoritative, persisted collection of candidates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/kv"
	"github.com/fmuoria/candidate-screener/internal/models"
)

var (
	// ErrNotFound is returned when an id is not in the store
	ErrNotFound = errors.New("candidate not found")
	// ErrInvalidCandidate is returned for records that break the data model
	ErrInvalidCandidate = errors.New("invalid candidate")
)

// Notifier surfaces persistence problems to the user
type Notifier interface {
	Error(message string) string
}

// EventKind tells subscribers what changed
type EventKind string

const (
	EventUpserted EventKind = "upserted"
	EventRemoved  EventKind = "removed"
)

// Event is delivered to subscribers after a mutation has been applied
type Event struct {
	Kind      EventKind
	Candidate models.Candidate
}

// Option configures a Store
type Option func(*Store)

// WithNotifier routes persistence failures to n
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the clock used for processedAt defaults
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the candidate records, keyed by id, in insertion order. Every
// mutation is written through to the kv backend before it returns; write
// failures leave the in-memory state authoritative.
type Store struct {
	backend  kv.Store
	logger   *zap.Logger
	notifier Notifier
	now      func() time.Time

	mu       sync.RWMutex
	order    []string
	byID     map[string]models.Candidate
	degraded bool

	// persistMu is taken while mu is still held so writes land in mutation order.
	persistMu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// Open creates a store and loads any persisted candidates. Missing or
// corrupt data yields an empty store.
func Open(ctx context.Context, backend kv.Store, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend: backend,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		byID:    make(map[string]models.Candidate),
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	data, ok, err := s.backend.Read(ctx, kv.KeyCandidates)
	if err != nil {
		s.logger.Warn("failed to read candidates, starting empty", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	var persisted []models.Candidate
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.logger.Warn("failed to parse candidates, starting empty", zap.Error(err))
		return
	}

	for _, c := range persisted {
		if err := validate(c); c.ID == "" || err != nil {
			s.logger.Warn("skipping invalid persisted candidate", zap.String("id", c.ID), zap.Error(err))
			continue
		}
		c = normalize(c)
		if _, seen := s.byID[c.ID]; !seen {
			s.order = append(s.order, c.ID)
		}
		s.byID[c.ID] = c
	}
	s.logger.Info("loaded candidates", zap.Int("count", len(s.order)))
}

// Upsert inserts c, or replaces the record with the same id wholesale. The
// stored status is always derived from the score.
func (s *Store) Upsert(ctx context.Context, c models.Candidate) (models.Candidate, error) {
	c, err := s.prepare(c)
	if err != nil {
		return models.Candidate{}, err
	}

	s.mu.Lock()
	return s.commitLocked(ctx, c), nil
}

// Update edits an existing record. Id, source file and processedAt are
// immutable and carried over from the stored record.
func (s *Store) Update(ctx context.Context, c models.Candidate) (models.Candidate, error) {
	s.mu.Lock()
	existing, ok := s.byID[c.ID]
	if !ok {
		s.mu.Unlock()
		return models.Candidate{}, fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	c.File = existing.File
	c.ProcessedAt = existing.ProcessedAt
	if c.Notes == nil {
		c.Notes = existing.Notes
	}

	c, err := s.prepare(c)
	if err != nil {
		s.mu.Unlock()
		return models.Candidate{}, err
	}
	return s.commitLocked(ctx, c), nil
}

// AddNote appends a recruiter note to a candidate
func (s *Store) AddNote(ctx context.Context, id, note string) (models.Candidate, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return models.Candidate{}, fmt.Errorf("%w: empty note", ErrInvalidCandidate)
	}

	s.mu.Lock()
	existing, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return models.Candidate{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := existing.Clone()
	c.Notes = append(c.Notes, note)
	return s.commitLocked(ctx, c), nil
}

// prepare checks c against the data model and returns a normalized copy
// with an id and timestamp.
func (s *Store) prepare(c models.Candidate) (models.Candidate, error) {
	if err := validate(c); err != nil {
		return models.Candidate{}, err
	}

	c = normalize(c.Clone())
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ProcessedAt.IsZero() {
		c.ProcessedAt = s.now()
	}
	return c, nil
}

// commitLocked must be called with s.mu held; it releases s.mu.
func (s *Store) commitLocked(ctx context.Context, c models.Candidate) models.Candidate {
	if _, exists := s.byID[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.byID[c.ID] = c
	s.persistLocked(ctx)

	out := c.Clone()
	s.publish(Event{Kind: EventUpserted, Candidate: out.Clone()})
	return out
}

// Remove deletes id. It reports whether a record was removed.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	removed, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.persistLocked(ctx)

	s.publish(Event{Kind: EventRemoved, Candidate: removed.Clone()})
	return true
}

// All returns a snapshot of every candidate in insertion order
func (s *Store) All() []models.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Candidate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Get returns a copy of the candidate with the given id
func (s *Store) Get(id string) (models.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return models.Candidate{}, false
	}
	return c.Clone(), true
}

// Len reports the number of candidates
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Degraded reports whether the last write to the backend failed
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Subscribe registers fn for change events; the returned func unregisters it.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// persistLocked must be called with s.mu held; it releases s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	snapshot := make([]models.Candidate, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.byID[id])
	}
	data, marshalErr := json.Marshal(snapshot)

	s.persistMu.Lock()
	s.mu.Unlock()
	defer s.persistMu.Unlock()

	err := marshalErr
	if err == nil {
		err = s.backend.Write(ctx, kv.KeyCandidates, data)
	}

	s.mu.Lock()
	wasDegraded := s.degraded
	s.degraded = err != nil
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("candidates kept in memory only", zap.Error(err))
		if s.notifier != nil && !wasDegraded {
			s.notifier.Error("Could not save candidates. Changes are kept in memory only.")
		}
		return
	}
	if wasDegraded {
		s.logger.Info("candidate persistence recovered")
	}
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func validate(c models.Candidate) error {
	if c.Score < models.MinScore || c.Score > models.MaxScore {
		return fmt.Errorf("%w: score %d outside [%d,%d]", ErrInvalidCandidate, c.Score, models.MinScore, models.MaxScore)
	}
	for _, sk := range c.Skills {
		if sk.Category != models.SkillTechnical && sk.Category != models.SkillSoft {
			return fmt.Errorf("%w: skill %q has unknown category %q", ErrInvalidCandidate, sk.Name, sk.Category)
		}
		if sk.Confidence < 0 || sk.Confidence > 1 {
			return fmt.Errorf("%w: skill %q confidence %.2f outside [0,1]", ErrInvalidCandidate, sk.Name, sk.Confidence)
		}
	}
	return nil
}

func normalize(c models.Candidate) models.Candidate {
	c.Status = models.StatusForScore(c.Score)
	if c.Skills == nil {
		c.Skills = []models.Skill{}
	}
	c.Skills = models.MergeSkills(c.Skills)
	if c.Notes == nil {
		c.Notes = []string{}
	}
	return c
}
