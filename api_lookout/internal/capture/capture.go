// Package capture takes screenshots of selected posts and stores them as
// session artifacts.
package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"frameworks/pkg/logging"
)

// Target is one post to capture.
type Target struct {
	URL      string  `json:"url"`
	Platform string  `json:"platform"`
	Title    string  `json:"title,omitempty"`
	Score    float64 `json:"viral_score"`
	Category string  `json:"viral_category"`
}

// Screenshot records a successful capture.
type Screenshot struct {
	URL        string    `json:"url"`
	Platform   string    `json:"platform"`
	Title      string    `json:"title,omitempty"`
	Score      float64   `json:"viral_score"`
	Category   string    `json:"viral_category"`
	File       string    `json:"filename"`
	Path       string    `json:"filepath"`
	CapturedAt time.Time `json:"captured_at"`
}

// Capturer is what the pipeline hands viral posts to.
type Capturer interface {
	Capture(ctx context.Context, sessionID string, targets []Target, max int) ([]Screenshot, error)
}

// Sink receives screenshot bytes.
type Sink interface {
	Put(ctx context.Context, sessionID, name string, data []byte) error
}

// shooter renders one URL to PNG bytes.
type shooter interface {
	Shoot(ctx context.Context, url string) ([]byte, error)
}

const filesDir = "files"

// Service bounds concurrent tabs and writes each PNG to the sink. A failed
// target is logged and skipped.
type Service struct {
	shooter shooter
	sink    Sink
	logger  logging.Logger
	tabs    int
}

func newService(sh shooter, sink Sink, tabs int, logger logging.Logger) *Service {
	if tabs <= 0 {
		tabs = maxConcurrentTabs
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Service{shooter: sh, sink: sink, logger: logger, tabs: tabs}
}

func (s *Service) Capture(ctx context.Context, sessionID string, targets []Target, max int) ([]Screenshot, error) {
	if max > 0 && len(targets) > max {
		targets = targets[:max]
	}
	results := make([]*Screenshot, len(targets))

	var mu sync.Mutex
	var failures int
	g := new(errgroup.Group)
	g.SetLimit(s.tabs)
	for i, target := range targets {
		g.Go(func() error {
			shot, err := s.captureOne(ctx, sessionID, i, target)
			if err != nil {
				s.logger.WithError(err).WithFields(logging.Fields{
					"session_id": sessionID,
					"url":        target.URL,
				}).Warn("Screenshot capture failed")
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			results[i] = shot
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Screenshot, 0, len(targets))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	s.logger.WithFields(logging.Fields{
		"session_id": sessionID,
		"captured":   len(out),
		"failed":     failures,
	}).Info("Screenshot capture finished")
	return out, nil
}

func (s *Service) captureOne(ctx context.Context, sessionID string, idx int, t Target) (*Screenshot, error) {
	if strings.TrimSpace(t.URL) == "" {
		return nil, fmt.Errorf("target %d has no url", idx)
	}
	png, err := s.shooter.Shoot(ctx, t.URL)
	if err != nil {
		return nil, err
	}
	platform := t.Platform
	if platform == "" {
		platform = "web"
	}
	file := fmt.Sprintf("%s_%02d.png", platform, idx+1)
	path := filesDir + "/" + file
	if err := s.sink.Put(ctx, sessionID, path, png); err != nil {
		return nil, fmt.Errorf("store screenshot: %w", err)
	}
	return &Screenshot{
		URL:        t.URL,
		Platform:   t.Platform,
		Title:      t.Title,
		Score:      t.Score,
		Category:   t.Category,
		File:       file,
		Path:       path,
		CapturedAt: time.Now().UTC(),
	}, nil
}
