package workflow

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"frameworks/api_lookout/internal/artifacts"
	"frameworks/api_lookout/internal/state"
)

// Status is the progress view of a session.
type Status struct {
	SessionID          string                      `json:"session_id"`
	Stage              state.Stage                 `json:"stage"`
	CurrentStep        int                         `json:"current_step"`
	StepStatus         map[string]state.StepStatus `json:"step_status"`
	ProgressPercentage int                         `json:"progress_percentage"`
	EstimatedRemaining string                      `json:"estimated_remaining"`
	Error              string                      `json:"error,omitempty"`
	LastUpdate         time.Time                   `json:"last_update"`
}

var stepProgress = map[string]int{state.Step1: 33, state.Step2: 66, state.Step3: 100}

var stepEstimate = map[string]string{
	state.Step1: EstimateCollection,
	state.Step2: EstimateSynthesis,
	state.Step3: EstimateGeneration,
}

// Status reads the persisted record. It never waits on a running stage;
// concurrent reads of one session share a single load, which is detached
// from the cancellation of whichever caller started it.
func (m *Machine) Status(ctx context.Context, id string) (*Status, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := m.reads.Do(id, func() (any, error) {
		return m.load(shared, id)
	})
	if err != nil {
		return nil, err
	}
	return statusOf(v.(*state.Session)), nil
}

func statusOf(sess *state.Session) *Status {
	st := &Status{
		SessionID:          sess.SessionID,
		Stage:              sess.Stage,
		StepStatus:         make(map[string]state.StepStatus, len(state.StepNames)),
		EstimatedRemaining: "Calculando...",
		Error:              sess.Error,
		LastUpdate:         sess.UpdatedAt,
	}
	for i, name := range state.StepNames {
		status := sess.Steps[name].Status
		if status == "" {
			status = state.StepPending
		}
		st.StepStatus[name] = status
		switch status {
		case state.StepCompleted:
			st.CurrentStep = i + 1
			st.ProgressPercentage = stepProgress[name]
		case state.StepRunning:
			st.EstimatedRemaining = stepEstimate[name]
		}
	}
	switch sess.Stage {
	case state.StageComplete:
		st.EstimatedRemaining = "Concluído"
	case state.StageFailed:
		st.EstimatedRemaining = "Interrompido"
	}
	return st
}

// Results lists what a session has produced so far.
type Results struct {
	SessionID            string           `json:"session_id"`
	Stage                state.Stage      `json:"stage"`
	AvailableFiles       []artifacts.Info `json:"available_files"`
	FinalReportAvailable bool             `json:"final_report_available"`
	FinalReportPath      string           `json:"final_report_path,omitempty"`
	ModulesGenerated     int              `json:"modules_generated"`
	ModulesList          []string         `json:"modules_list"`
	ScreenshotsCaptured  int              `json:"screenshots_captured"`
	ScreenshotsList      []string         `json:"screenshots_list"`
}

func (m *Machine) Results(ctx context.Context, id string) (*Results, error) {
	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := m.deps.Artifacts.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	res := &Results{
		SessionID:       id,
		Stage:           sess.Stage,
		AvailableFiles:  files,
		ModulesList:     []string{},
		ScreenshotsList: []string{},
	}
	if res.AvailableFiles == nil {
		res.AvailableFiles = []artifacts.Info{}
	}
	for _, f := range files {
		switch {
		case f.Path == ArtifactFinalReport:
			res.FinalReportAvailable = true
			res.FinalReportPath = f.Path
		case strings.HasPrefix(f.Path, modulesDir) && path.Ext(f.Path) == ".md":
			res.ModulesList = append(res.ModulesList, f.Name)
		case strings.HasPrefix(f.Path, filesDir) && path.Ext(f.Path) == ".png":
			res.ScreenshotsList = append(res.ScreenshotsList, f.Name)
		}
	}
	res.ModulesGenerated = len(res.ModulesList)
	res.ScreenshotsCaptured = len(res.ScreenshotsList)
	return res, nil
}

// Report selectors accepted by Download.
const (
	SelectFinalReport    = "final_report"
	SelectCompleteReport = "complete_report"
)

// Download is a report ready to send.
type Download struct {
	Filename string
	Data     []byte
}

// Download returns the selected report. final_report falls back to the
// complete report when the final one has not been written.
func (m *Machine) Download(ctx context.Context, id, selector string) (*Download, error) {
	var candidates []string
	var filename string
	switch selector {
	case SelectFinalReport:
		candidates = []string{ArtifactFinalReport, ArtifactCompleteReport}
		filename = fmt.Sprintf("final_report_%s.md", id)
	case SelectCompleteReport:
		candidates = []string{ArtifactCompleteReport}
		filename = fmt.Sprintf("complete_report_%s.md", id)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSelector, selector)
	}
	for _, name := range candidates {
		data, err := m.deps.Artifacts.Get(ctx, id, name)
		if err == nil {
			return &Download{Filename: filename, Data: data}, nil
		}
		if !errors.Is(err, artifacts.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s for %s", ErrArtifactNotFound, selector, id)
}
