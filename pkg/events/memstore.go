package events

import (
	"context"
	"sync"
	"time"
)

// MemoryEventStore keeps events in process memory. Used when no database
// is configured; history disappears on restart, which matches the run
// store's in-memory mode.
type MemoryEventStore struct {
	mu   sync.RWMutex
	seq  int64
	byID map[string][]StoredEvent
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{byID: make(map[string][]StoredEvent)}
}

func (s *MemoryEventStore) Append(_ context.Context, ev ...Event) error {
	if len(ev) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range ev {
		payload, err := e.MarshalData()
		if err != nil {
			return err
		}
		at := e.Timestamp()
		if at.IsZero() {
			at = time.Now()
		}
		s.seq++
		se := StoredEvent{
			Seq:     s.seq,
			RunID:   e.RunID(),
			Type:    e.Type(),
			Ts:      at,
			Payload: payload,
		}
		if a := e.Analyst(); a != nil {
			v := *a
			se.Analyst = &v
		}
		s.byID[se.RunID] = append(s.byID[se.RunID], se)
	}
	return nil
}

func (s *MemoryEventStore) ListByRun(_ context.Context, runID string) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.byID[runID]
	out := make([]StoredEvent, len(evs))
	copy(out, evs)
	return out, nil
}

func (s *MemoryEventStore) ReplayRun(ctx context.Context, runID string) (*RebuiltState, error) {
	events, err := s.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Replay(events), nil
}

var _ EventStore = (*MemoryEventStore)(nil)
