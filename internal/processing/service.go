package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AgentClient is the external multimodal inference collaborator. Defined here
// to decouple the orchestrator from the concrete client implementation.
type AgentClient interface {
	GenerateFromURL(ctx context.Context, mediaURL string) (json.RawMessage, error)
	GenerateFromFile(ctx context.Context, path, mimeType string) (json.RawMessage, error)
}

// ReportService renders and distributes a ward report for a finished run.
type ReportService interface {
	SendWardReport(ctx context.Context, result ProcessingResult) error
}

// ErrHistoryUnavailable is returned when no database is configured for the
// results history.
var ErrHistoryUnavailable = errors.New("results history not available")

type Service interface {
	ProcessURL(ctx context.Context, mediaURL string) (*ProcessingResult, error)
	ProcessAudioFile(ctx context.Context, path, mimeType string) (*ProcessingResult, error)
	RecentResults(ctx context.Context, limit int) ([]ResultRecord, error)
}

type service struct {
	agent     AgentClient
	repo      Repository    // may be nil: server runs without history
	reportSvc ReportService // may be nil: reporting disabled
	logger    *zap.Logger
}

func NewService(agent AgentClient, repo Repository, reportSvc ReportService, logger *zap.Logger) Service {
	return &service{
		agent:     agent,
		repo:      repo,
		reportSvc: reportSvc,
		logger:    logger,
	}
}

// ProcessURL runs the full pipeline for media referenced by a remote URL.
func (s *service) ProcessURL(ctx context.Context, mediaURL string) (*ProcessingResult, error) {
	start := time.Now()

	raw, err := s.agent.GenerateFromURL(ctx, mediaURL)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, "url", raw, start)
}

// ProcessAudioFile runs the full pipeline for an uploaded local file. The
// collaborator's own upload/poll/delete protocol is handled by the client.
func (s *service) ProcessAudioFile(ctx context.Context, path, mimeType string) (*ProcessingResult, error) {
	start := time.Now()

	raw, err := s.agent.GenerateFromFile(ctx, path, mimeType)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, "upload", raw, start)
}

func (s *service) finish(ctx context.Context, source string, raw json.RawMessage, start time.Time) (*ProcessingResult, error) {
	elapsed := time.Since(start).Seconds()

	result, err := Normalize(raw, &elapsed)
	if err != nil {
		return nil, fmt.Errorf("normalization failed: %w", err)
	}

	s.logger.Info("recording processed",
		zap.String("source", source),
		zap.Int("segments", len(result.TranscriptSegments)),
		zap.Int("tasks", len(result.NurseTasks)),
		zap.Float64("elapsed_seconds", elapsed),
	)

	// History and ward reporting are best-effort; a failure here never fails
	// the request.
	if s.repo != nil {
		record := NewResultRecord(source, *result)
		if err := s.repo.Save(ctx, &record); err != nil {
			s.logger.Warn("failed to save result record", zap.Error(err))
		}
	}
	if s.reportSvc != nil {
		go func(r ProcessingResult) {
			bgCtx := context.Background()
			if err := s.reportSvc.SendWardReport(bgCtx, r); err != nil {
				s.logger.Warn("failed to send ward report", zap.Error(err))
			}
		}(*result)
	}

	return result, nil
}

func (s *service) RecentResults(ctx context.Context, limit int) ([]ResultRecord, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRecent(ctx, limit)
}
