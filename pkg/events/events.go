package events

import (
	"context"
	"encoding/json"
	"time"

	"serp-similarity/internal/models"
)

// Event is the base interface for all run-related audit events.
// Keep payloads small, use JSON-friendly fields.
// Why: Enables replay and audit without coupling to DB schema.
// TODO: consider schema versioning if payloads evolve.
type Event interface {
	Type() string
	RunID() string
	Timestamp() time.Time
	Analyst() *string
	MarshalData() ([]byte, error)
}

// Base contains common event metadata.
type Base struct {
	Ts  time.Time `json:"ts"`
	RID string    `json:"run_id"`
	Ana *string   `json:"analyst,omitempty"`
}

func (b Base) Timestamp() time.Time { return b.Ts }
func (b Base) RunID() string        { return b.RID }
func (b Base) Analyst() *string     { return b.Ana }

// --- Concrete events ---

const (
	TypeRunQueued      = "run.queued"
	TypeRunStarted     = "run.started"
	TypeKeywordFetched = "run.keyword.fetched"
	TypeKeywordFailed  = "run.keyword.failed"
	TypeRunCompleted   = "run.completed"
	TypeRunFailed      = "run.failed"
)

// RunQueued is emitted when a run is accepted and stored, before any
// SERP fetch happens. Triggered records the entry point (web|api).
type RunQueued struct {
	Base
	KeywordCount int    `json:"keyword_count"`
	Provider     string `json:"provider"`
	Triggered    string `json:"triggered"`
}

func (e RunQueued) Type() string                 { return TypeRunQueued }
func (e RunQueued) MarshalData() ([]byte, error) { return json.Marshal(e) }

// RunStarted is emitted when a worker picks the run up.
type RunStarted struct {
	Base
	KeywordCount int    `json:"keyword_count"`
	Provider     string `json:"provider"`
	Location     string `json:"location,omitempty"`
}

func (e RunStarted) Type() string                 { return TypeRunStarted }
func (e RunStarted) MarshalData() ([]byte, error) { return json.Marshal(e) }

// KeywordFetched records one successful SERP fetch within a run.
type KeywordFetched struct {
	Base
	Keyword string `json:"keyword"`
	Results int    `json:"results"`
	Cached  bool   `json:"cached"`
}

func (e KeywordFetched) Type() string                 { return TypeKeywordFetched }
func (e KeywordFetched) MarshalData() ([]byte, error) { return json.Marshal(e) }

// KeywordFailed records a keyword that exhausted its fetch retries.
// The run continues without it; the report lists it as skipped.
type KeywordFailed struct {
	Base
	Keyword  string `json:"keyword"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
}

func (e KeywordFailed) Type() string                 { return TypeKeywordFailed }
func (e KeywordFailed) MarshalData() ([]byte, error) { return json.Marshal(e) }

// RunCompleted carries the headline verdict so audits don't need the full report.
type RunCompleted struct {
	Base
	KeywordCount    int     `json:"keyword_count"`
	PairCount       int     `json:"pair_count"`
	WorstPair       string  `json:"worst_pair,omitempty"`
	WorstSimilarity float64 `json:"worst_similarity,omitempty"`
	Cannibalized    bool    `json:"cannibalized"`
	DurationMs      int64   `json:"duration_ms"`
}

func (e RunCompleted) Type() string                 { return TypeRunCompleted }
func (e RunCompleted) MarshalData() ([]byte, error) { return json.Marshal(e) }

type RunFailed struct {
	Base
	Reason string `json:"reason"`
}

func (e RunFailed) Type() string                 { return TypeRunFailed }
func (e RunFailed) MarshalData() ([]byte, error) { return json.Marshal(e) }

// EventStore defines persistence and replay.
// Implementations must guarantee ordering per run.
type EventStore interface {
	Append(ctx context.Context, ev ...Event) error
	ListByRun(ctx context.Context, runID string) ([]StoredEvent, error)
	ReplayRun(ctx context.Context, runID string) (*RebuiltState, error)
}

// StoredEvent is a durable representation.
// Seq is a monotonic order within the store (BIGINT AUTO_INCREMENT in SQL).
type StoredEvent struct {
	Seq     int64     `json:"seq"`
	RunID   string    `json:"run_id"`
	Type    string    `json:"type"`
	Ts      time.Time `json:"ts"`
	Analyst *string   `json:"analyst,omitempty"`
	Payload []byte    `json:"payload"` // original JSON
}

// RebuiltState is the result of replay for a run.
// This is intentionally small: current status and fetch progress.
// UIs can still show full history by listing events.

type RebuiltState struct {
	RunID        string           `json:"run_id"`
	Status       models.RunStatus `json:"status"`
	Fetched      int              `json:"fetched"`
	Total        int              `json:"total"`
	Failed       int              `json:"failed"`
	LastUpdated  time.Time        `json:"last_updated"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Cannibalized bool             `json:"cannibalized"`
	LastError    string           `json:"last_error,omitempty"`
}

// Replay applies events in order and rebuilds state.
func Replay(events []StoredEvent) *RebuiltState {
	st := &RebuiltState{}
	for _, se := range events {
		st.RunID = se.RunID
		st.LastUpdated = se.Ts
		switch se.Type {
		case TypeRunQueued:
			var ev RunQueued
			_ = json.Unmarshal(se.Payload, &ev)
			st.Status = models.RunStatusPending
			st.Total = ev.KeywordCount
		case TypeRunStarted:
			var ev RunStarted
			_ = json.Unmarshal(se.Payload, &ev)
			st.Status = models.RunStatusFetching
			if ev.KeywordCount > 0 {
				st.Total = ev.KeywordCount
			}
		case TypeKeywordFetched:
			st.Fetched++
		case TypeKeywordFailed:
			var ev KeywordFailed
			_ = json.Unmarshal(se.Payload, &ev)
			st.Failed++
			st.LastError = ev.Reason
		case TypeRunCompleted:
			var ev RunCompleted
			_ = json.Unmarshal(se.Payload, &ev)
			st.Status = models.RunStatusCompleted
			st.Cannibalized = ev.Cannibalized
			done := se.Ts
			st.CompletedAt = &done
		case TypeRunFailed:
			var ev RunFailed
			_ = json.Unmarshal(se.Payload, &ev)
			st.Status = models.RunStatusFailed
			st.LastError = ev.Reason
			done := se.Ts
			st.CompletedAt = &done
		}
	}
	return st
}
