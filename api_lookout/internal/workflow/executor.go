package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"frameworks/api_lookout/internal/analysis"
	"frameworks/api_lookout/internal/artifacts"
	"frameworks/api_lookout/internal/events"
	"frameworks/api_lookout/internal/pipeline"
	"frameworks/api_lookout/internal/state"
	"frameworks/pkg/logging"
)

// Artifact names.
const (
	ArtifactSearchResults    = "search_results.json"
	ArtifactCollectionReport = "collection_report.md"
	ArtifactSynthesis        = "synthesis.json"
	ArtifactFinalReport      = "final_report.md"
	ArtifactCompleteReport   = "complete_report.md"
	modulesDir               = "modules/"
	filesDir                 = "files/"
)

// stageFunc runs one stage and returns the artifact names it wrote.
type stageFunc func(ctx context.Context, sess *state.Session) ([]string, error)

// completedStage is where the stage field moves once a step completes.
var completedStage = map[string]state.Stage{
	state.Step1: state.StageSynthesizing,
	state.Step2: state.StageGenerating,
	state.Step3: state.StageComplete,
}

// execute runs a claimed step and records every transition of it. Panics
// become stage failures.
func (m *Machine) execute(ctx context.Context, id, step string, stage state.Stage, run stageFunc) (err error) {
	defer m.release(id, step)
	log := m.log.WithFields(logging.Fields{"session_id": id, "stage": stage, "step": step})

	sess, err := m.start(ctx, id, step, stage)
	if err != nil {
		log.WithError(err).Warn("Stage not started")
		return fmt.Errorf("%w: %s: %w", ErrStageExecution, step, err)
	}
	start := time.Now()
	log.Info("Stage started")
	m.publish(ctx, events.TypeStageStarted, id, stage, step, nil, "")

	var names []string
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		names, err = run(ctx, sess)
	}()
	stageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrStageExecution, step, err)
		stageRunsTotal.WithLabelValues(string(stage), "failed").Inc()
		log.WithError(err).Error("Stage failed")
		if perr := m.finish(ctx, id, step, state.StepFailed, nil, err.Error()); perr != nil {
			log.WithError(perr).Error("Failed to persist stage failure")
		}
		m.publish(ctx, events.TypeStageFailed, id, stage, step, nil, err.Error())
		return err
	}

	stageRunsTotal.WithLabelValues(string(stage), "completed").Inc()
	if perr := m.finish(ctx, id, step, state.StepCompleted, names, ""); perr != nil {
		log.WithError(perr).Error("Failed to persist stage completion")
		return fmt.Errorf("%w: %s: persist completion: %w", ErrStageExecution, step, perr)
	}
	log.WithFields(logging.Fields{"artifacts": len(names), "duration": time.Since(start).String()}).Info("Stage completed")
	m.publish(ctx, events.TypeStageCompleted, id, stage, step, names, "")
	return nil
}

// start persists the step as running and moves the session into stage.
func (m *Machine) start(ctx context.Context, id, step string, stage state.Stage) (*state.Session, error) {
	unlock := m.lock(id)
	defer unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Stage.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrSessionTerminal, id, sess.Stage)
	}
	now := m.now().UTC()
	sess.Steps[step] = state.Step{Status: state.StepRunning, StartedAt: &now}
	sess.UpdatedAt = now
	advance(sess, stage)
	if err := m.deps.State.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist %s start: %w", step, err)
	}
	return sess.Clone(), nil
}

// finish records a step outcome. A failure sets FAILED unless the session
// already finished; a completion advances the stage, never backwards.
func (m *Machine) finish(ctx context.Context, id, step string, status state.StepStatus, names []string, errMsg string) error {
	unlock := m.lock(id)
	defer unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	rec := sess.Steps[step]
	rec.Status = status
	rec.Artifacts = names
	rec.Error = errMsg
	rec.CompletedAt = &now
	sess.Steps[step] = rec
	sess.UpdatedAt = now

	switch {
	case status == state.StepFailed && !sess.Stage.Terminal():
		sess.Stage = state.StageFailed
		sess.Error = errMsg
	case status == state.StepCompleted:
		advance(sess, completedStage[step])
	}
	return m.deps.State.Save(ctx, sess)
}

func (m *Machine) collect(ctx context.Context, sess *state.Session) ([]string, error) {
	result, err := m.deps.Collector.Run(ctx, &pipeline.Request{
		SessionID: sess.SessionID,
		Query:     sess.Query,
		Context:   sess.Context,
	})
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal search results: %w", err)
	}
	if err := m.deps.Artifacts.Put(ctx, sess.SessionID, ArtifactSearchResults, data); err != nil {
		return nil, err
	}
	report := collectionReport(result)
	if err := m.deps.Artifacts.Put(ctx, sess.SessionID, ArtifactCollectionReport, []byte(report)); err != nil {
		return nil, err
	}
	names := []string{ArtifactSearchResults, ArtifactCollectionReport}
	for _, shot := range result.ScreenshotsCaptured {
		names = append(names, shot.Path)
	}
	return names, nil
}

func (m *Machine) synthesize(ctx context.Context, sess *state.Session) ([]string, error) {
	// Synthesis may be triggered before collection finishes; it then works
	// from the query and context alone.
	material, err := m.deps.Artifacts.Get(ctx, sess.SessionID, ArtifactCollectionReport)
	switch {
	case errors.Is(err, artifacts.ErrNotFound):
		material = nil
	case err != nil:
		return nil, err
	}
	syn, err := m.deps.Synthesizer.Synthesize(ctx, analysis.Input{
		SessionID: sess.SessionID,
		Query:     sess.Query,
		Context:   sess.Context,
		Material:  string(material),
	})
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(syn, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis: %w", err)
	}
	if err := m.deps.Artifacts.Put(ctx, sess.SessionID, ArtifactSynthesis, data); err != nil {
		return nil, err
	}
	return []string{ArtifactSynthesis}, nil
}

func (m *Machine) generate(ctx context.Context, sess *state.Session) ([]string, error) {
	raw, err := m.deps.Artifacts.Get(ctx, sess.SessionID, ArtifactSynthesis)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return nil, fmt.Errorf("synthesis not available: %w", err)
		}
		return nil, err
	}
	var syn analysis.Synthesis
	if err := json.Unmarshal(raw, &syn); err != nil {
		return nil, fmt.Errorf("decode synthesis: %w", err)
	}
	report, err := m.deps.Generator.Generate(ctx, &syn)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, mod := range report.Modules {
		if mod.Error != "" {
			continue
		}
		name := modulesDir + mod.Name + ".md"
		if err := m.deps.Artifacts.Put(ctx, sess.SessionID, name, []byte(analysis.ModuleMarkdown(mod))); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := m.deps.Artifacts.Put(ctx, sess.SessionID, ArtifactCompleteReport, []byte(report.CompleteReport)); err != nil {
		return nil, err
	}
	if err := m.deps.Artifacts.Put(ctx, sess.SessionID, ArtifactFinalReport, []byte(report.FinalReport)); err != nil {
		return nil, err
	}
	return append(names, ArtifactCompleteReport, ArtifactFinalReport), nil
}
