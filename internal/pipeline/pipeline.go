// Package pipeline runs resume batches through validation, scoring and
// commit, one batch at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fmuoria/candidate-screener/internal/ingestion"
	"github.com/fmuoria/candidate-screener/internal/models"
	"github.com/fmuoria/candidate-screener/internal/scoring"
)

// AutoShortlistScore is the score at which auto-shortlisting counts a candidate
const AutoShortlistScore = 90

const defaultQueueSize = 16

var (
	// ErrNoValidFiles is returned when validation leaves nothing to score
	ErrNoValidFiles = errors.New("no valid files")
	// ErrNothingScored is returned when every valid file failed to score
	ErrNothingScored = errors.New("no file could be scored")
	// ErrStopped is returned for batches the worker will never pick up
	ErrStopped = errors.New("pipeline stopped")
)

// State is the stage the worker is in
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateScoring    State = "scoring"
	StateCommitting State = "committing"
	StateFailed     State = "failed"
)

// Notifier receives user-facing progress messages
type Notifier interface {
	Info(message string) string
	Success(message string) string
	Error(message string) string
}

// CandidateSink stores scored candidates
type CandidateSink interface {
	Upsert(ctx context.Context, c models.Candidate) (models.Candidate, error)
}

// WeightsSource provides the committed scoring weights
type WeightsSource interface {
	Current() models.ScoringWeights
}

// ProgressCallback is called after each file finishes scoring, possibly from
// several goroutines at once.
type ProgressCallback func(current, total int, message string)

// Failure records a file that passed validation but produced no candidate
type Failure struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

// Result summarizes one processed batch
type Result struct {
	Submitted       int                          `json:"submitted"`
	Rejected        []*ingestion.ValidationError `json:"-"`
	Failed          []Failure                    `json:"-"`
	Committed       []models.Candidate           `json:"committed"`
	HighPerformers  int                          `json:"highPerformers"`
	AutoShortlisted int                          `json:"autoShortlisted"`
}

// Batch is a queued ingestion request
type Batch struct {
	ctx   context.Context
	files []models.FileHandle
	done  chan struct{}

	result Result
	err    error
}

func (b *Batch) finish(res Result, err error) {
	b.result = res
	b.err = err
	close(b.done)
}

// Done is closed once the batch has been processed
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch completes or ctx ends
func (b *Batch) Wait(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-b.done:
		return b.result, b.err
	}
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithValidator replaces the default file validator
func WithValidator(v ingestion.Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// WithProgress registers a per-file progress callback
func WithProgress(cb ProgressCallback) Option {
	return func(p *Pipeline) { p.progress = cb }
}

// WithQueueSize bounds how many batches may wait for the worker
func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// Pipeline orchestrates resume ingestion. Batches are processed strictly in
// arrival order by the goroutine running Run.
type Pipeline struct {
	scorer    scoring.Scorer
	store     CandidateSink
	settings  WeightsSource
	notifier  Notifier
	validator ingestion.Validator
	progress  ProgressCallback
	logger    *zap.Logger
	queueSize int

	batches chan *Batch
	stopped chan struct{}
	stop    sync.Once
	enqMu   sync.Mutex
	closed  bool

	mu    sync.RWMutex
	state State
}

// New creates a pipeline. Call Run to start the worker.
func New(scorer scoring.Scorer, store CandidateSink, settings WeightsSource, notifier Notifier, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		scorer:    scorer,
		store:     store,
		settings:  settings,
		notifier:  notifier,
		validator: ingestion.NewValidator(0),
		logger:    logger,
		queueSize: defaultQueueSize,
		stopped:   make(chan struct{}),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.batches = make(chan *Batch, p.queueSize)
	return p
}

// State reports the worker's current stage
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	prev := p.state
	p.state = s
	p.mu.Unlock()
	p.logger.Debug("pipeline state", zap.String("from", string(prev)), zap.String("to", string(s)))
}

// Run processes queued batches until ctx ends. Batches still queued at that
// point fail with ErrStopped.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.stop.Do(p.shutdown)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-p.batches:
			res, err := p.process(b.ctx, b.files)
			b.finish(res, err)
		}
	}
}

func (p *Pipeline) shutdown() {
	close(p.stopped)

	p.enqMu.Lock()
	defer p.enqMu.Unlock()
	p.closed = true
	for {
		select {
		case b := <-p.batches:
			b.finish(Result{Submitted: len(b.files)}, ErrStopped)
		default:
			return
		}
	}
}

// Enqueue queues files for processing. Cancelling ctx cancels the batch;
// anything not yet committed is dropped.
func (p *Pipeline) Enqueue(ctx context.Context, files []models.FileHandle) *Batch {
	b := &Batch{ctx: ctx, files: files, done: make(chan struct{})}

	p.enqMu.Lock()
	defer p.enqMu.Unlock()
	if p.closed {
		b.finish(Result{Submitted: len(files)}, ErrStopped)
		return b
	}

	select {
	case p.batches <- b:
	case <-ctx.Done():
		b.finish(Result{Submitted: len(files)}, ctx.Err())
	case <-p.stopped:
		b.finish(Result{Submitted: len(files)}, ErrStopped)
	}
	return b
}

// Ingest queues files and waits for their result
func (p *Pipeline) Ingest(ctx context.Context, files []models.FileHandle) (Result, error) {
	return p.Enqueue(ctx, files).Wait(ctx)
}

func (p *Pipeline) process(ctx context.Context, files []models.FileHandle) (Result, error) {
	res := Result{Submitted: len(files)}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	defer p.setState(StateIdle)

	p.setState(StateValidating)
	valid, rejected := p.validator.Partition(files)
	res.Rejected = rejected

	if len(valid) == 0 {
		p.setState(StateFailed)
		msg := "No valid files to process."
		if len(rejected) > 0 {
			msg += " " + rejectionMessage(rejected)
		}
		p.notifier.Error(msg)
		return res, ErrNoValidFiles
	}
	if len(rejected) > 0 {
		p.notifier.Error(rejectionMessage(rejected))
	}

	p.setState(StateScoring)
	weights := p.settings.Current()
	p.notifier.Info(fmt.Sprintf("Processing %d files...", len(valid)))
	p.logger.Info("scoring batch",
		zap.Int("files", len(valid)),
		zap.Int("rejected", len(rejected)),
		zap.String("mode", string(weights.ProcessingMode)))

	scored, scoreErrs := p.scoreAll(ctx, valid, weights)

	if err := ctx.Err(); err != nil {
		p.setState(StateFailed)
		p.logger.Info("batch cancelled before commit", zap.Int("files", len(valid)))
		p.notifier.Info("Processing cancelled. No candidates were saved.")
		return res, err
	}

	p.setState(StateCommitting)
	// a batch that reached this point is committed in full
	commitCtx := context.WithoutCancel(ctx)
	for i, f := range valid {
		if scoreErrs[i] != nil {
			res.Failed = append(res.Failed, Failure{File: f.Name, Err: scoreErrs[i]})
			p.logger.Warn("failed to score file", zap.String("file", f.Name), zap.Error(scoreErrs[i]))
			continue
		}

		c := scored[i]
		if c.File == "" {
			c.File = f.Name
		}
		stored, err := p.store.Upsert(commitCtx, c)
		if err != nil {
			res.Failed = append(res.Failed, Failure{File: f.Name, Err: err})
			p.logger.Warn("failed to commit candidate", zap.String("file", f.Name), zap.Error(err))
			continue
		}

		res.Committed = append(res.Committed, stored)
		if stored.Score >= models.HighScoreThreshold {
			res.HighPerformers++
		}
		if weights.AutoShortlist && stored.Score >= AutoShortlistScore {
			res.AutoShortlisted++
		}
	}

	if len(res.Committed) == 0 {
		p.setState(StateFailed)
		p.notifier.Error(fmt.Sprintf("Could not process any of the %d files. %s", len(valid), failureDetail(res.Failed)))
		return res, ErrNothingScored
	}
	if len(res.Failed) > 0 {
		p.notifier.Error(fmt.Sprintf("Failed to process %d file(s). %s", len(res.Failed), failureDetail(res.Failed)))
	}

	msg := fmt.Sprintf("Successfully processed %d candidates. %d high performers identified!", len(res.Committed), res.HighPerformers)
	if len(res.Failed) > 0 {
		msg += fmt.Sprintf(" %d failed.", len(res.Failed))
	}
	p.notifier.Success(msg)

	p.logger.Info("batch committed",
		zap.Int("committed", len(res.Committed)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("high_performers", res.HighPerformers),
		zap.Int("auto_shortlisted", res.AutoShortlisted))
	return res, nil
}

// scoreAll scores files concurrently, bounded by the processing mode.
// Results and errors are indexed like files.
func (p *Pipeline) scoreAll(ctx context.Context, files []models.FileHandle, weights models.ScoringWeights) ([]models.Candidate, []error) {
	scored := make([]models.Candidate, len(files))
	errs := make([]error, len(files))

	var completed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Parallelism(weights.ProcessingMode))

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			c, err := p.scorer.Score(gctx, f, weights)
			if err != nil {
				errs[i] = err
			} else {
				scored[i] = c
			}

			n := int(completed.Add(1))
			if p.progress != nil {
				p.progress(n, len(files), fmt.Sprintf("Scored %s (%d/%d)", f.Name, n, len(files)))
			}
			return nil
		})
	}
	_ = g.Wait()
	return scored, errs
}

// Parallelism is how many files a processing mode scores at once
func Parallelism(mode models.ProcessingMode) int {
	switch mode {
	case models.ProcessingFast:
		return 4
	case models.ProcessingThorough:
		return 1
	default:
		return 2
	}
}

func rejectionMessage(rejected []*ingestion.ValidationError) string {
	parts := make([]string, 0, len(rejected))
	for _, r := range rejected {
		parts = append(parts, fmt.Sprintf("%s (%s)", r.File, r.Reason))
	}
	return fmt.Sprintf("Rejected %d file(s): %s", len(rejected), strings.Join(parts, ", "))
}

func failureDetail(failed []Failure) string {
	names := make([]string, 0, len(failed))
	for _, f := range failed {
		names = append(names, f.File)
	}
	return strings.Join(names, ", ")
}
