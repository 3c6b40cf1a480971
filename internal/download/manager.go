package download

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/tile-mosaic/internal/config"
	"github.com/handiism/tile-mosaic/internal/fetch"
	"github.com/handiism/tile-mosaic/internal/http"
	ioutils "github.com/handiism/tile-mosaic/internal/io"
	"github.com/handiism/tile-mosaic/internal/model"
	"github.com/handiism/tile-mosaic/internal/mosaic"
	"github.com/handiism/tile-mosaic/internal/tile"
)

// ErrTooManyFailures is returned when the share of failed tiles exceeds
// Settings.MaxFailureRatio. The mosaic is still written.
var ErrTooManyFailures = errors.New("too many failed tiles")

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a job progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
	// Done is the number of tiles processed so far, successful or not.
	Done int
	// Total is the number of tiles in the job.
	Total int
}

// Result summarises a finished job.
type Result struct {
	Path      string
	Range     tile.Range
	Width     int
	Height    int
	Transform mosaic.GeoTransform
	Total     int
	Succeeded int
	Failed    []tile.Coordinate
	Elapsed   time.Duration
}

// FailureRatio returns failed/total, or 0 for an empty job.
func (r *Result) FailureRatio() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(len(r.Failed)) / float64(r.Total)
}

// tileResult is what a fetch worker hands to the writer loop. Exactly one of
// pixels and err is set.
type tileResult struct {
	coord  tile.Coordinate
	pixels *tile.PixelBuffer
	err    error
}

// Manager runs fetch-and-merge jobs.
type Manager struct {
	settings *config.Settings
	log      zerolog.Logger
	getter   fetch.Getter

	doneTiles   atomic.Int64
	failedTiles atomic.Int64
	totalTiles  atomic.Int64

	onProgress func(ProgressEvent)
}

// Option configures a Manager.
type Option func(*Manager)

// WithGetter replaces the HTTP client used for tile requests.
func WithGetter(g fetch.Getter) Option {
	return func(m *Manager) {
		m.getter = g
	}
}

// NewManager creates a new Manager. onProgress may be nil.
func NewManager(settings *config.Settings, log zerolog.Logger, onProgress func(ProgressEvent), opts ...Option) *Manager {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	m := &Manager{
		settings:   settings,
		log:        log,
		onProgress: onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetProgress returns the progress of the running or last job.
func (m *Manager) GetProgress() (done, failed, total int64) {
	return m.doneTiles.Load(), m.failedTiles.Load(), m.totalTiles.Load()
}

// Run fetches every tile of job and merges them into one GeoTIFF at
// job.OutputPath.
//
// Fetches run concurrently, at most job.Concurrency at a time. Tiles are
// written by a single loop as they arrive, so the mosaic is never touched
// concurrently. A failed tile leaves its window zero-filled and does not
// stop the job. The mosaic is finalized on every path once created.
//
// The returned Result is non-nil whenever the mosaic was created, including
// when the error is ErrTooManyFailures or a cancellation.
func (m *Manager) Run(ctx context.Context, job *model.Job) (*Result, error) {
	start := time.Now()
	r := job.Range
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if job.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", job.Concurrency)
	}

	getter := m.getter
	if getter == nil {
		client := http.NewClient(
			http.WithTimeout(m.settings.RequestTimeout()),
			http.WithUserAgent(m.settings.UserAgent),
			http.WithMaxConns(job.Concurrency),
		)
		defer client.Close()
		getter = client
	}

	fetcher, err := fetch.NewFetcher(job.URLTemplate, getter, m.settings.ToRetryPolicy())
	if err != nil {
		return nil, err
	}

	if err := ioutils.EnsureParentDir(job.OutputPath); err != nil {
		return nil, &mosaic.CreateError{Path: job.OutputPath, Err: err}
	}

	gt := mosaic.ForRange(r)
	mos, err := mosaic.Create(job.OutputPath, r.Width(), r.Height(), gt)
	if err != nil {
		return nil, err
	}

	total := r.Count()
	m.doneTiles.Store(0)
	m.failedTiles.Store(0)
	m.totalTiles.Store(int64(total))

	m.log.Info().
		Int("z", r.Zoom).
		Int("tiles", total).
		Int("width", r.Width()).
		Int("height", r.Height()).
		Str("path", job.OutputPath).
		Msg("job started")
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Fetching %d tiles (%dx%d px) into %s", total, r.Width(), r.Height(), job.OutputPath),
		Level:   LevelInfo,
		Total:   total,
	})

	res := &Result{
		Path:      job.OutputPath,
		Range:     r,
		Width:     r.Width(),
		Height:    r.Height(),
		Transform: gt,
		Total:     total,
	}

	runErr := m.merge(ctx, job, fetcher, mos, res)
	if cerr := mos.Close(); cerr != nil && runErr == nil {
		runErr = cerr
	}
	res.Elapsed = time.Since(start)

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if runErr == nil && m.settings.MaxFailureRatio > 0 && res.FailureRatio() > m.settings.MaxFailureRatio {
		runErr = fmt.Errorf("%w: %d of %d (limit %.0f%%)", ErrTooManyFailures,
			len(res.Failed), res.Total, m.settings.MaxFailureRatio*100)
	}

	ev := m.log.Info()
	if runErr != nil {
		ev = m.log.Error().Err(runErr)
	}
	ev.Int("succeeded", res.Succeeded).
		Int("failed", len(res.Failed)).
		Dur("elapsed", res.Elapsed).
		Str("path", res.Path).
		Msg("job finished")

	switch {
	case runErr != nil:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Job failed after %s: %v", res.Elapsed.Round(time.Millisecond), runErr), Level: LevelError, Done: total, Total: total})
	case len(res.Failed) > 0:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Finished %s in %s, %d of %d tiles failed", res.Path, res.Elapsed.Round(time.Millisecond), len(res.Failed), total), Level: LevelWarning, Done: total, Total: total})
	default:
		m.progress(ProgressEvent{Message: fmt.Sprintf("Finished %s in %s", res.Path, res.Elapsed.Round(time.Millisecond)), Level: LevelSuccess, Done: total, Total: total})
	}

	return res, runErr
}

// merge fans tile fetches out to a bounded worker pool and writes each tile
// as it completes. A write error is fatal: pending fetches are cancelled and
// the remaining results drained.
func (m *Manager) merge(ctx context.Context, job *model.Job, fetcher *fetch.Fetcher, mos *mosaic.Mosaic, res *Result) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan tileResult)
	go func() {
		defer close(results)

		var g errgroup.Group
		g.SetLimit(job.Concurrency)
		for _, c := range job.Range.Coordinates() {
			if ctx.Err() != nil {
				break
			}
			c := c // capture
			g.Go(func() error {
				buf, err := fetcher.Fetch(ctx, c)
				results <- tileResult{coord: c, pixels: buf, err: err}
				return nil
			})
		}
		g.Wait()
	}()

	var fatal error
	done := 0
	for tr := range results {
		done++
		m.doneTiles.Add(1)
		if fatal != nil {
			continue
		}

		if tr.err != nil {
			res.Failed = append(res.Failed, tr.coord)
			m.failedTiles.Add(1)
			m.log.Warn().
				Int("z", tr.coord.Zoom).
				Int("x", tr.coord.Col).
				Int("y", tr.coord.Row).
				Err(tr.err).
				Msg("tile failed")
			m.progress(ProgressEvent{Message: tr.err.Error(), Level: LevelWarning, Done: done, Total: res.Total})
			continue
		}

		x, y := job.Range.PixelOffset(tr.coord)
		if err := mos.WriteTile(tr.pixels, x, y); err != nil {
			fatal = fmt.Errorf("write tile %s: %w", tr.coord, err)
			cancel()
			continue
		}
		res.Succeeded++
		m.progress(ProgressEvent{Message: fmt.Sprintf("Tile %s", tr.coord), Level: LevelVerbose, Done: done, Total: res.Total})
	}

	return fatal
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
