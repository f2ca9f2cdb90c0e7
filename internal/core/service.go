package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/planos/internal/logging"
	"github.com/JonMunkholm/planos/internal/source"
)

// RunTimeout bounds a single run when the caller's context has no deadline.
var RunTimeout = 2 * time.Minute

// Settings are the extraction settings a Service applies to every run.
type Settings struct {
	Numbers     NumberFormat
	DateLayout  string
	MaxFileSize int64 // 0 uses source.DefaultMaxSize

	Timeout           time.Duration // 0 uses RunTimeout
	MaxConcurrentRuns int           // 0 uses DefaultMaxConcurrentRuns
	MaxWait           time.Duration // 0 uses DefaultMaxWait
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Numbers:    DefaultNumberFormat,
		DateLayout: DefaultDateLayout,
	}
}

// Input is one named spreadsheet stream.
type Input struct {
	Name   string
	Reader io.Reader
}

// RunRequest carries the two inputs of a run.
type RunRequest struct {
	Cash     Input
	Benefits Input
}

// Service runs the read-then-extract pipeline. It holds no per-run state
// and is safe for concurrent use.
type Service struct {
	settings Settings
	metrics  *Metrics
	limiter  *RunLimiter
}

// NewService creates a Service. metrics may be nil.
func NewService(settings Settings, metrics *Metrics) *Service {
	if settings.DateLayout == "" {
		settings.DateLayout = DefaultDateLayout
	}
	if settings.Numbers == (NumberFormat{}) {
		settings.Numbers = DefaultNumberFormat
	}
	return &Service{
		settings: settings,
		metrics:  metrics,
		limiter:  NewRunLimiter(settings.MaxConcurrentRuns, settings.MaxWait),
	}
}

func (s *Service) timeout() time.Duration {
	if s.settings.Timeout > 0 {
		return s.settings.Timeout
	}
	return RunTimeout
}

// LimiterStatus reports how many runs are in progress.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// Settings returns the service's extraction settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// Run reads both inputs concurrently and extracts records from them.
// A missing input returns an error wrapping ErrNoFile; an unreadable one
// returns the reader's error, which matches source.ErrUnreadableSource.
func (s *Service) Run(ctx context.Context, req RunRequest) (*Result, error) {
	return s.RunWith(ctx, req, s.settings.DateLayout)
}

// RunWith is Run with a per-run date layout. An empty layout uses the
// service setting.
func (s *Service) RunWith(ctx context.Context, req RunRequest, dateLayout string) (res *Result, err error) {
	if dateLayout == "" {
		dateLayout = s.settings.DateLayout
	}
	runID := uuid.New().String()
	ctx = ContextWithRunID(ctx, runID)
	logger := logging.WithFields(ctx, "run_id", runID)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout())
		defer cancel()
	}

	defer func() { s.metrics.observe(res, err) }()

	if req.Cash.Reader == nil {
		return nil, fmt.Errorf("cash register file: %w", ErrNoFile)
	}
	if req.Benefits.Reader == nil {
		return nil, fmt.Errorf("benefits file: %w", ErrNoFile)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("run rejected", slog.String("error", err.Error()))
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	logger.Info("run started",
		slog.String("cash_file", req.Cash.Name),
		slog.String("benefits_file", req.Benefits.Name),
	)

	cash, benefits, err := s.readBoth(ctx, req)
	if err != nil {
		logger.Warn("run failed", slog.String("error", err.Error()))
		return nil, err
	}

	res, err = Extract(ctx, cash, benefits,
		WithNumberFormat(s.settings.Numbers),
		WithDateLayout(dateLayout),
		WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	res.RunID = runID

	logger.Info("run completed",
		slog.Int("cash_rows", cash.Len()),
		slog.Int("benefits_rows", benefits.Len()),
		slog.Int("records", len(res.Records)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// Preview reads both inputs like RunWith and reports what the run would
// produce. It records no metrics.
func (s *Service) Preview(ctx context.Context, req RunRequest, dateLayout string) (*Preview, error) {
	if dateLayout == "" {
		dateLayout = s.settings.DateLayout
	}
	runID := uuid.New().String()
	ctx = ContextWithRunID(ctx, runID)
	logger := logging.WithFields(ctx, "run_id", runID, "mode", "preview")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout())
		defer cancel()
	}

	if req.Cash.Reader == nil {
		return nil, fmt.Errorf("cash register file: %w", ErrNoFile)
	}
	if req.Benefits.Reader == nil {
		return nil, fmt.Errorf("benefits file: %w", ErrNoFile)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	cash, benefits, err := s.readBoth(ctx, req)
	if err != nil {
		logger.Warn("preview failed", slog.String("error", err.Error()))
		return nil, err
	}

	p, err := Check(ctx, cash, benefits,
		WithNumberFormat(s.settings.Numbers),
		WithDateLayout(dateLayout),
		WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	p.RunID = runID

	logger.Info("preview completed",
		slog.Int("records", p.Records),
		slog.String("outcome", string(p.Outcome)),
	)
	return p, nil
}

// readBoth parses the two inputs in parallel. The first failure cancels the other.
func (s *Service) readBoth(ctx context.Context, req RunRequest) (cash, benefits *source.Dataset, err error) {
	opts := []source.Option{source.WithMaxSize(s.settings.MaxFileSize)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cash, err = source.Read(gctx, req.Cash.Name, req.Cash.Reader, opts...)
		return err
	})
	g.Go(func() error {
		var err error
		benefits, err = source.Read(gctx, req.Benefits.Name, req.Benefits.Reader, opts...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cash, benefits, nil
}

// RunFiles opens two files from disk and runs them.
func (s *Service) RunFiles(ctx context.Context, cashPath, benefitsPath, dateLayout string) (res *Result, err error) {
	err = withFiles(cashPath, benefitsPath, func(req RunRequest) error {
		res, err = s.RunWith(ctx, req, dateLayout)
		return err
	})
	return res, err
}

// PreviewFiles opens two files from disk and previews them.
func (s *Service) PreviewFiles(ctx context.Context, cashPath, benefitsPath, dateLayout string) (p *Preview, err error) {
	err = withFiles(cashPath, benefitsPath, func(req RunRequest) error {
		p, err = s.Preview(ctx, req, dateLayout)
		return err
	})
	return p, err
}

// withFiles opens both paths for the duration of fn.
func withFiles(cashPath, benefitsPath string, fn func(RunRequest) error) error {
	cash, err := openInput(cashPath)
	if err != nil {
		return err
	}
	defer cash.Close()

	benefits, err := openInput(benefitsPath)
	if err != nil {
		return err
	}
	defer benefits.Close()

	return fn(RunRequest{
		Cash:     Input{Name: filepath.Base(cashPath), Reader: cash},
		Benefits: Input{Name: filepath.Base(benefitsPath), Reader: benefits},
	})
}

func openInput(path string) (*os.File, error) {
	if path == "" {
		return nil, ErrNoFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &source.SourceError{Name: filepath.Base(path), Err: err}
	}
	return f, nil
}
