// Package workflow drives a session through collection, synthesis and
// generation. Triggers return immediately; each stage runs in a background
// goroutine and records its progress on the persisted session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"frameworks/api_lookout/internal/analysis"
	"frameworks/api_lookout/internal/artifacts"
	"frameworks/api_lookout/internal/events"
	"frameworks/api_lookout/internal/pipeline"
	"frameworks/api_lookout/internal/state"
	"frameworks/pkg/logging"
)

var (
	ErrSessionNotFound  = errors.New("workflow: session not found")
	ErrSessionTerminal  = errors.New("workflow: session already finished")
	ErrStageConflict    = errors.New("workflow: stage already started")
	ErrStageExecution   = errors.New("workflow: stage failed")
	ErrInvalidSelector  = errors.New("workflow: invalid report type")
	ErrArtifactNotFound = errors.New("workflow: artifact not found")
	ErrSegmentRequired  = errors.New("workflow: segmento is required")
)

// Estimated durations reported by the triggers.
const (
	EstimateCollection = "5-8 minutos"
	EstimateSynthesis  = "2-4 minutos"
	EstimateGeneration = "4-6 minutos"
	EstimateComplete   = "8-15 minutos"
)

// Collector runs the search pipeline for stage 1.
type Collector interface {
	Run(ctx context.Context, req *pipeline.Request) (*pipeline.SearchState, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in analysis.Input) (*analysis.Synthesis, error)
}

type Generator interface {
	Generate(ctx context.Context, syn *analysis.Synthesis) (*analysis.Report, error)
}

// Deps are the machine's collaborators. Events and Logger may be nil.
type Deps struct {
	State       state.Store
	Artifacts   artifacts.Store
	Collector   Collector
	Synthesizer Synthesizer
	Generator   Generator
	Events      events.Sink
	Logger      logging.Logger
}

// CollectionRequest is the input to stage 1.
type CollectionRequest struct {
	Segmento        string `json:"segmento"`
	Produto         string `json:"produto"`
	Publico         string `json:"publico"`
	Preco           string `json:"preco"`
	ObjetivoReceita string `json:"objetivo_receita"`
}

// Query builds "segmento [produto] Brasil 2024 mercado".
func (r CollectionRequest) Query() string {
	parts := []string{strings.TrimSpace(r.Segmento)}
	if p := strings.TrimSpace(r.Produto); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, "Brasil", "2024", "mercado")
	return strings.Join(parts, " ")
}

func (r CollectionRequest) context() map[string]string {
	out := map[string]string{}
	for k, v := range map[string]string{
		"segmento":         r.Segmento,
		"produto":          r.Produto,
		"publico":          r.Publico,
		"preco":            r.Preco,
		"objetivo_receita": r.ObjetivoReceita,
	} {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Task tracks one background stage run.
type Task struct {
	SessionID string
	Stage     state.Stage
	done      chan struct{}
	err       error
}

func newTask(id string, stage state.Stage) *Task {
	return &Task{SessionID: id, Stage: stage, done: make(chan struct{})}
}

// Done is closed when the stage finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err is the stage error. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Started is returned by the session-creating triggers.
type Started struct {
	SessionID         string
	Query             string
	EstimatedDuration string
	Task              *Task
}

type Machine struct {
	deps Deps
	log  logging.Logger
	now  func() time.Time

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	running map[string]map[string]bool

	reads singleflight.Group
	tasks sync.WaitGroup
}

func New(deps Deps) (*Machine, error) {
	if deps.State == nil || deps.Artifacts == nil {
		return nil, errors.New("workflow: state and artifact stores are required")
	}
	if deps.Collector == nil || deps.Synthesizer == nil || deps.Generator == nil {
		return nil, errors.New("workflow: collector, synthesizer and generator are required")
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	log := deps.Logger
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	return &Machine{
		deps:    deps,
		log:     log,
		now:     time.Now,
		locks:   map[string]*sync.Mutex{},
		running: map[string]map[string]bool{},
	}, nil
}

// Wait blocks until every background stage has finished.
func (m *Machine) Wait() { m.tasks.Wait() }

func (m *Machine) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// claim marks step as in flight for id. It reports false when the step is
// already running in this process.
func (m *Machine) claim(id, step string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := m.running[id]
	if steps == nil {
		steps = map[string]bool{}
		m.running[id] = steps
	}
	if steps[step] {
		return false
	}
	steps[step] = true
	return true
}

func (m *Machine) release(id, step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running[id], step)
	if len(m.running[id]) == 0 {
		delete(m.running, id)
	}
}

func (m *Machine) newSessionID() string {
	return fmt.Sprintf("session_%d_%s", m.now().UnixMilli(), uuid.NewString()[:8])
}

// StartCollection creates a session and runs stage 1 in the background.
func (m *Machine) StartCollection(ctx context.Context, req CollectionRequest) (*Started, error) {
	sess, err := m.create(ctx, req)
	if err != nil {
		return nil, err
	}
	task := m.spawn(ctx, sess.SessionID, state.StageCollecting, func(bg context.Context) error {
		return m.execute(bg, sess.SessionID, state.Step1, state.StageCollecting, m.collect)
	})
	return &Started{SessionID: sess.SessionID, Query: sess.Query, EstimatedDuration: EstimateCollection, Task: task}, nil
}

// StartSynthesis runs stage 2 for an existing session.
func (m *Machine) StartSynthesis(ctx context.Context, id string) (*Task, error) {
	if err := m.begin(ctx, id, state.Step2); err != nil {
		return nil, err
	}
	return m.spawn(ctx, id, state.StageSynthesizing, func(bg context.Context) error {
		return m.execute(bg, id, state.Step2, state.StageSynthesizing, m.synthesize)
	}), nil
}

// StartGeneration runs stage 3 for an existing session.
func (m *Machine) StartGeneration(ctx context.Context, id string) (*Task, error) {
	if err := m.begin(ctx, id, state.Step3); err != nil {
		return nil, err
	}
	return m.spawn(ctx, id, state.StageGenerating, func(bg context.Context) error {
		return m.execute(bg, id, state.Step3, state.StageGenerating, m.generate)
	}), nil
}

// CompleteWorkflow creates a session and runs all three stages in sequence
// in one background task. It stops at the first failed stage.
func (m *Machine) CompleteWorkflow(ctx context.Context, req CollectionRequest) (*Started, error) {
	sess, err := m.create(ctx, req)
	if err != nil {
		return nil, err
	}
	id := sess.SessionID
	task := m.spawn(ctx, id, state.StageComplete, func(bg context.Context) error {
		if err := m.execute(bg, id, state.Step1, state.StageCollecting, m.collect); err != nil {
			return err
		}
		next := []struct {
			step  string
			stage state.Stage
			run   stageFunc
		}{
			{state.Step2, state.StageSynthesizing, m.synthesize},
			{state.Step3, state.StageGenerating, m.generate},
		}
		for _, n := range next {
			if err := m.begin(bg, id, n.step); err != nil {
				return err
			}
			if err := m.execute(bg, id, n.step, n.stage, n.run); err != nil {
				return err
			}
		}
		return nil
	})
	return &Started{SessionID: id, Query: sess.Query, EstimatedDuration: EstimateComplete, Task: task}, nil
}

// create persists a new PENDING session and claims step1 for the caller.
func (m *Machine) create(ctx context.Context, req CollectionRequest) (*state.Session, error) {
	if strings.TrimSpace(req.Segmento) == "" {
		return nil, ErrSegmentRequired
	}
	sess := state.NewSession(m.newSessionID(), req.Query(), req.context(), m.now().UTC())

	unlock := m.lock(sess.SessionID)
	defer unlock()
	if err := m.deps.State.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}
	m.claim(sess.SessionID, state.Step1)
	m.log.WithFields(logging.Fields{"session_id": sess.SessionID, "query": sess.Query}).Info("Session created")
	return sess, nil
}

// begin validates a trigger and claims the step. Nothing is persisted: the
// stage executor records the transition once it runs.
func (m *Machine) begin(ctx context.Context, id, step string) error {
	unlock := m.lock(id)
	defer unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if sess.Stage.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrSessionTerminal, id, sess.Stage)
	}
	if sess.Steps[step].Status == state.StepCompleted {
		return fmt.Errorf("%w: %s %s already completed", ErrStageConflict, id, step)
	}
	if !m.claim(id, step) {
		return fmt.Errorf("%w: %s %s already running", ErrStageConflict, id, step)
	}
	return nil
}

// advance moves the stage forward. Terminal sessions never change.
func advance(sess *state.Session, target state.Stage) {
	if !sess.Stage.Terminal() && target.Rank() > sess.Stage.Rank() {
		sess.Stage = target
	}
}

func (m *Machine) load(ctx context.Context, id string) (*state.Session, error) {
	sess, err := m.deps.State.Load(ctx, id)
	if errors.Is(err, state.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if sess.Steps == nil {
		sess.Steps = map[string]state.Step{}
	}
	return sess, nil
}

// spawn runs fn detached from the caller's cancellation.
func (m *Machine) spawn(ctx context.Context, id string, stage state.Stage, fn func(context.Context) error) *Task {
	task := newTask(id, stage)
	bg := context.WithoutCancel(ctx)
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		task.finish(fn(bg))
	}()
	return task
}

func (m *Machine) publish(ctx context.Context, typ, id string, stage state.Stage, step string, artifacts []string, errMsg string) {
	err := m.deps.Events.Publish(ctx, events.StageEvent{
		Type:      typ,
		SessionID: id,
		Stage:     string(stage),
		Step:      step,
		Artifacts: artifacts,
		Error:     errMsg,
		Timestamp: m.now().UTC(),
	})
	if err != nil {
		m.log.WithError(err).WithFields(logging.Fields{"session_id": id, "type": typ}).Warn("Failed to publish stage event")
	}
}
