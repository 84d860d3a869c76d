package handlers

import (
	"sync"
	"time"

	"bidding-arena/internal/api/models"
	"bidding-arena/internal/replay"

	"github.com/google/uuid"
)

// StoredRun is one finished (or aborted) run held in memory. The core
// mandates no persistence format; the RunResult sequence is the durable
// artifact and everything else is derivable from it.
type StoredRun struct {
	ID          string
	CreatedAt   time.Time
	Result      *replay.Result
	Scoreboard  *replay.Scoreboard
	Validations []models.ValidationResult
}

// RunStore is an in-memory run registry keyed by UUID.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*StoredRun
}

func NewRunStore() *RunStore {
	return &RunStore{runs: map[string]*StoredRun{}}
}

func (s *RunStore) Add(run *StoredRun) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = uuid.NewString()
	run.CreatedAt = time.Now()
	s.runs[run.ID] = run
	return run.ID
}

func (s *RunStore) Get(id string) (*StoredRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}
