package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fmuoria/candidate-screener/internal/ingestion"
	"github.com/fmuoria/candidate-screener/internal/kv"
	"github.com/fmuoria/candidate-screener/internal/models"
	"github.com/fmuoria/candidate-screener/internal/notify"
	"github.com/fmuoria/candidate-screener/internal/scoring"
	"github.com/fmuoria/candidate-screener/internal/store"
)

type staticWeights models.ScoringWeights

func (w staticWeights) Current() models.ScoringWeights { return models.ScoringWeights(w) }

// scriptedScorer returns a fixed score per file name, or an error for names in fail
type scriptedScorer struct {
	scores map[string]int
	fail   map[string]bool
}

func (s scriptedScorer) Score(ctx context.Context, f models.FileHandle, _ models.ScoringWeights) (models.Candidate, error) {
	if s.fail[f.Name] {
		return models.Candidate{}, fmt.Errorf("%w: analysis rejected %s", scoring.ErrScoringUnavailable, f.Name)
	}
	return models.Candidate{
		Name:   scoring.DeriveName(f.Name),
		Score:  s.scores[f.Name],
		Skills: []models.Skill{{Name: "Go", Category: models.SkillTechnical, Confidence: 0.9}},
		File:   f.Name,
	}, nil
}

type harness struct {
	pipeline *Pipeline
	store    *store.Store
	queue    *notify.Queue
	events   *[]models.Notification
}

func newHarness(t *testing.T, scorer scoring.Scorer, weights models.ScoringWeights, opts ...Option) harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	queue := notify.NewQueue(zap.NewNop(), time.Minute)
	t.Cleanup(queue.Close)

	var mu sync.Mutex
	events := []models.Notification{}
	queue.Subscribe(func(ev notify.Event) {
		if ev.Kind != notify.EventPushed {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev.Notification)
	})

	st := store.Open(ctx, kv.NewMemoryStore(), zap.NewNop(), store.WithNotifier(queue))
	p := New(scorer, st, staticWeights(weights), queue, zap.NewNop(), opts...)
	go p.Run(ctx)

	return harness{pipeline: p, store: st, queue: queue, events: &events}
}

func pdf(name string, size int64) models.FileHandle {
	return models.FileHandle{Name: name, ContentType: ingestion.MIMEPDF, Size: size}
}

func types(ns []models.Notification) []models.NotificationType {
	out := make([]models.NotificationType, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Type)
	}
	return out
}

func TestIngest_TwoValidOneOversized(t *testing.T) {
	scorer := scriptedScorer{scores: map[string]int{"jane_doe.pdf": 91, "john_roe.pdf": 72}}
	h := newHarness(t, scorer, models.DefaultScoringWeights())

	files := []models.FileHandle{
		pdf("jane_doe.pdf", 1<<20),
		pdf("huge_scan.pdf", 25<<20),
		pdf("john_roe.pdf", 2<<20),
	}

	res, err := h.pipeline.Ingest(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Submitted)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "huge_scan.pdf", res.Rejected[0].File)
	assert.True(t, errors.Is(res.Rejected[0], ingestion.ErrInvalidFile))
	assert.Equal(t, ingestion.ReasonTooLarge, res.Rejected[0].Reason)

	require.Len(t, res.Committed, 2)
	assert.Equal(t, 1, res.HighPerformers)
	assert.Equal(t, 1, res.AutoShortlisted)
	assert.Equal(t, 2, h.store.Len())

	all := h.store.All()
	assert.Equal(t, "jane_doe.pdf", all[0].File, "committed in file order")
	assert.Equal(t, models.StatusShortlisted, all[0].Status)
	assert.Equal(t, models.StatusReviewed, all[1].Status)

	got := *h.events
	assert.Equal(t, []models.NotificationType{models.NotificationError, models.NotificationInfo, models.NotificationSuccess}, types(got))
	assert.Contains(t, got[0].Message, "huge_scan.pdf")
	assert.Equal(t, "Processing 2 files...", got[1].Message)
	assert.Equal(t, "Successfully processed 2 candidates. 1 high performers identified!", got[2].Message)
	assert.Equal(t, StateIdle, h.pipeline.State())
}

func TestIngest_NoValidFiles(t *testing.T) {
	h := newHarness(t, scriptedScorer{}, models.DefaultScoringWeights())

	res, err := h.pipeline.Ingest(context.Background(), []models.FileHandle{
		{Name: "photo.png", ContentType: "image/png", Size: 100},
	})
	assert.True(t, errors.Is(err, ErrNoValidFiles))
	assert.Len(t, res.Rejected, 1)
	assert.Equal(t, 0, h.store.Len())

	got := *h.events
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationError, got[0].Type)
	assert.Contains(t, got[0].Message, "photo.png")

	_, err = h.pipeline.Ingest(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrNoValidFiles))
}

func TestIngest_ScoringFailuresDoNotAbortBatch(t *testing.T) {
	scorer := scriptedScorer{
		scores: map[string]int{"a.pdf": 88, "c.pdf": 65},
		fail:   map[string]bool{"b.pdf": true},
	}
	h := newHarness(t, scorer, models.DefaultScoringWeights())

	res, err := h.pipeline.Ingest(context.Background(), []models.FileHandle{pdf("a.pdf", 10), pdf("b.pdf", 10), pdf("c.pdf", 10)})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "b.pdf", res.Failed[0].File)
	assert.True(t, errors.Is(res.Failed[0].Err, scoring.ErrScoringUnavailable))
	assert.Equal(t, 2, h.store.Len())

	got := *h.events
	assert.Equal(t, []models.NotificationType{models.NotificationInfo, models.NotificationError, models.NotificationSuccess}, types(got))
	assert.Equal(t, "Successfully processed 2 candidates. 1 high performers identified! 1 failed.", got[2].Message)
}

func TestIngest_AllScoringFailed(t *testing.T) {
	scorer := scriptedScorer{fail: map[string]bool{"a.pdf": true, "b.pdf": true}}
	h := newHarness(t, scorer, models.DefaultScoringWeights())

	_, err := h.pipeline.Ingest(context.Background(), []models.FileHandle{pdf("a.pdf", 10), pdf("b.pdf", 10)})
	assert.True(t, errors.Is(err, ErrNothingScored))

	got := *h.events
	assert.Equal(t, []models.NotificationType{models.NotificationInfo, models.NotificationError}, types(got))
}

func TestIngest_AutoShortlistDisabled(t *testing.T) {
	w := models.DefaultScoringWeights()
	w.AutoShortlist = false
	h := newHarness(t, scriptedScorer{scores: map[string]int{"a.pdf": 95}}, w)

	res, err := h.pipeline.Ingest(context.Background(), []models.FileHandle{pdf("a.pdf", 10)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AutoShortlisted)
	assert.Equal(t, 1, res.HighPerformers)
}

// blockingScorer scores names in quick immediately and blocks the rest until cancelled
type blockingScorer struct {
	quick  map[string]bool
	scored chan string
}

func (s blockingScorer) Score(ctx context.Context, f models.FileHandle, _ models.ScoringWeights) (models.Candidate, error) {
	if s.quick[f.Name] {
		s.scored <- f.Name
		return models.Candidate{Name: f.Name, Score: 90, File: f.Name}, nil
	}
	<-ctx.Done()
	return models.Candidate{}, fmt.Errorf("%w: %w", scoring.ErrScoringUnavailable, ctx.Err())
}

func TestIngest_CancelledMidScoringCommitsNothing(t *testing.T) {
	scorer := blockingScorer{
		quick:  map[string]bool{"1.pdf": true, "2.pdf": true},
		scored: make(chan string, 5),
	}
	h := newHarness(t, scorer, models.DefaultScoringWeights())

	files := []models.FileHandle{pdf("1.pdf", 10), pdf("2.pdf", 10), pdf("3.pdf", 10), pdf("4.pdf", 10), pdf("5.pdf", 10)}

	ctx, cancel := context.WithCancel(context.Background())
	batch := h.pipeline.Enqueue(ctx, files)

	for i := 0; i < 2; i++ {
		select {
		case <-scorer.scored:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the quick files to score")
		}
	}
	cancel()

	_, err := batch.Wait(context.Background())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, h.store.Len())

	for _, n := range *h.events {
		assert.NotEqual(t, models.NotificationSuccess, n.Type)
	}
	assert.Equal(t, StateIdle, h.pipeline.State())
}

func TestIngest_BatchesRunInOrder(t *testing.T) {
	scorer := scriptedScorer{scores: map[string]int{"a.pdf": 80, "b.pdf": 70, "c.pdf": 60}}
	h := newHarness(t, scorer, models.DefaultScoringWeights())

	ctx := context.Background()
	first := h.pipeline.Enqueue(ctx, []models.FileHandle{pdf("a.pdf", 10)})
	second := h.pipeline.Enqueue(ctx, []models.FileHandle{pdf("b.pdf", 10), pdf("c.pdf", 10)})

	_, err := second.Wait(ctx)
	require.NoError(t, err)
	select {
	case <-first.Done():
	default:
		t.Fatal("first batch should complete before the second")
	}

	all := h.store.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, []string{all[0].File, all[1].File, all[2].File})

	got := *h.events
	assert.Equal(t, []models.NotificationType{
		models.NotificationInfo, models.NotificationSuccess,
		models.NotificationInfo, models.NotificationSuccess,
	}, types(got))
}

func TestIngest_Progress(t *testing.T) {
	var mu sync.Mutex
	var calls []int
	progress := func(current, total int, _ string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		calls = append(calls, current)
	}

	scorer := scriptedScorer{scores: map[string]int{"a.pdf": 80, "b.pdf": 70, "c.pdf": 60}}
	h := newHarness(t, scorer, models.DefaultScoringWeights(), WithProgress(progress))

	_, err := h.pipeline.Ingest(context.Background(), []models.FileHandle{pdf("a.pdf", 10), pdf("b.pdf", 10), pdf("c.pdf", 10)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, calls)
}

func TestEnqueue_AfterStop(t *testing.T) {
	queue := notify.NewQueue(zap.NewNop(), time.Minute)
	defer queue.Close()
	st := store.Open(context.Background(), kv.NewMemoryStore(), zap.NewNop())
	p := New(scriptedScorer{}, st, staticWeights(models.DefaultScoringWeights()), queue, zap.NewNop(), WithQueueSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)

	_, err := p.Ingest(context.Background(), []models.FileHandle{pdf("a.pdf", 10)})
	assert.True(t, errors.Is(err, ErrStopped))
}

func TestParallelism(t *testing.T) {
	assert.Equal(t, 4, Parallelism(models.ProcessingFast))
	assert.Equal(t, 2, Parallelism(models.ProcessingBalanced))
	assert.Equal(t, 1, Parallelism(models.ProcessingThorough))
	assert.Equal(t, 2, Parallelism(""))
}
