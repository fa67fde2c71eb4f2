// Package state persists workflow session records. Every backend publishes
// a record with a single atomic write.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a session id.
var ErrNotFound = errors.New("session not found")

type Stage string

const (
	StagePending      Stage = "PENDING"
	StageCollecting   Stage = "COLLECTING"
	StageSynthesizing Stage = "SYNTHESIZING"
	StageGenerating   Stage = "GENERATING"
	StageComplete     Stage = "COMPLETE"
	StageFailed       Stage = "FAILED"
)

var stageRank = map[Stage]int{
	StagePending:      0,
	StageCollecting:   1,
	StageSynthesizing: 2,
	StageGenerating:   3,
	StageComplete:     4,
	StageFailed:       5,
}

// Rank orders stages; transitions only move to a higher rank.
func (s Stage) Rank() int {
	if r, ok := stageRank[s]; ok {
		return r
	}
	return -1
}

func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step names, in execution order.
const (
	Step1 = "step1"
	Step2 = "step2"
	Step3 = "step3"
)

var StepNames = []string{Step1, Step2, Step3}

type Step struct {
	Status      StepStatus `json:"status"`
	Artifacts   []string   `json:"artifacts,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Session is the persisted workflow record.
type Session struct {
	SessionID string            `json:"session_id"`
	Stage     Stage             `json:"stage"`
	Query     string            `json:"query"`
	Context   map[string]string `json:"context,omitempty"`
	Steps     map[string]Step   `json:"steps"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewSession returns a PENDING record with every step pending.
func NewSession(id, query string, ctxFields map[string]string, now time.Time) *Session {
	steps := make(map[string]Step, len(StepNames))
	for _, name := range StepNames {
		steps[name] = Step{Status: StepPending}
	}
	return &Session{
		SessionID: id,
		Stage:     StagePending,
		Query:     query,
		Context:   ctxFields,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can mutate without racing readers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Context != nil {
		out.Context = make(map[string]string, len(s.Context))
		for k, v := range s.Context {
			out.Context[k] = v
		}
	}
	out.Steps = make(map[string]Step, len(s.Steps))
	for k, v := range s.Steps {
		v.Artifacts = append([]string(nil), v.Artifacts...)
		out.Steps[k] = v
	}
	return &out
}

// Store persists session records.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Ping(ctx context.Context) error
}
