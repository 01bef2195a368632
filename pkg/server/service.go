package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mikeboe/deep-researcher/pkg/database"
	"github.com/mikeboe/deep-researcher/pkg/research"
)

// ErrJobNotFound is returned when no job has the requested id.
var ErrJobNotFound = errors.New("job not found")

// EngineFactory builds a fresh engine for one job.
type EngineFactory func(ctx context.Context, cfg research.Config) (*research.ResearchEngine, error)

type Service struct {
	DB        *database.PostgresDB
	Cfg       research.Config
	NewEngine EngineFactory
	LogLevel  slog.Level
}

func NewService(db *database.PostgresDB, cfg research.Config, factory EngineFactory) *Service {
	return &Service{
		DB:        db,
		Cfg:       cfg,
		NewEngine: factory,
	}
}

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Step      *string         `json:"step,omitempty"`
	Report    *string         `json:"report,omitempty"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Config    json.RawMessage `json:"config"`
	State     json.RawMessage `json:"state,omitempty"`
}

type CreateJobRequest struct {
	Topic    string `json:"topic" binding:"required"`
	MaxLoops *int   `json:"maxLoops" binding:"omitempty,min=0,max=10"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	cfg := s.Cfg
	if req.MaxLoops != nil {
		cfg.MaxLoops = *req.MaxLoops
	}
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job config: %w", err)
	}

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, topic, status, config)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, topic, status, created_at, updated_at, config
	`

	job := &Job{}
	err = s.DB.Pool.QueryRow(ctx, query, jobID, req.Topic, configJSON).Scan(
		&job.ID, &job.Topic, &job.Status, &job.CreatedAt, &job.UpdatedAt, &job.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Start background worker
	go s.runWorker(job.ID, req.Topic, cfg)

	return job, nil
}

const jobColumns = `id, topic, status, step, report, error, created_at, updated_at, config, state`

func scanJob(row pgx.Row, job *Job) error {
	return row.Scan(
		&job.ID, &job.Topic, &job.Status, &job.Step, &job.Report, &job.Error,
		&job.CreatedAt, &job.UpdatedAt, &job.Config, &job.State,
	)
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM research_jobs WHERE id = $1`

	job := &Job{}
	if err := scanJob(s.DB.Pool.QueryRow(ctx, query, id), job); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM research_jobs ORDER BY created_at DESC LIMIT 50`

	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := scanJob(rows, &job); err != nil {
			slog.Warn("Skipping unreadable job row", "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Service) runWorker(jobID uuid.UUID, topic string, cfg research.Config) {
	ctx := context.Background()

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	dbLogger := slog.New(NewDBLogHandler(s.DB.Pool, jobID, s.LogLevel))

	engine, err := s.NewEngine(ctx, cfg)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to init engine: %v", err), nil)
		return
	}

	engine.Logger = dbLogger
	engine.OnStateUpdate = func(state research.ResearchState, step research.Step) {
		s.saveState(dbLogger, jobID, state, step)
	}

	result, err := engine.Run(ctx, topic)
	if err != nil {
		var sessErr *research.SessionError
		if errors.As(err, &sessErr) {
			s.failJob(ctx, jobID, fmt.Sprintf("Research failed: %v", err), &sessErr.State)
			return
		}
		s.failJob(ctx, jobID, fmt.Sprintf("Research failed: %v", err), nil)
		return
	}

	s.saveState(dbLogger, jobID, result.State, research.StepFinalize)
	_, err = s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = 'completed', report = $2, updated_at = NOW() WHERE id = $1",
		jobID, result.Report)
	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}
}

func (s *Service) saveState(logger *slog.Logger, jobID uuid.UUID, state research.ResearchState, step research.Step) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		logger.Error("Failed to marshal state", "error", err)
		return
	}

	_, err = s.DB.Pool.Exec(context.Background(),
		"UPDATE research_jobs SET state = $2, step = $3, updated_at = NOW() WHERE id = $1",
		jobID, stateJSON, step.String())
	if err != nil {
		logger.Error("Failed to save state to DB", "error", err)
	}
}

// failJob marks the job failed. A non-nil state is the last consistent
// snapshot and is kept so partial summaries stay readable.
func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, reason string, state *research.ResearchState) {
	dbLogger := slog.New(NewDBLogHandler(s.DB.Pool, jobID, s.LogLevel))
	dbLogger.Error(reason)

	if state != nil {
		if stateJSON, err := json.Marshal(state); err == nil {
			_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET state = $2 WHERE id = $1", jobID, stateJSON)
		}
	}
	_, _ = s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1",
		jobID, reason)
}
