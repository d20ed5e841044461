package worker_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/model"
	"coloring-page-service/internal/domain/ports/adapter"
	"coloring-page-service/internal/infra/db/memory"
	"coloring-page-service/internal/infra/imageproc"
	"coloring-page-service/internal/infra/worker"
	"coloring-page-service/internal/usecase"
)

type fakeGenerator struct {
	out      *adapter.GeneratedImage
	err      error
	block    bool
	lastReq  adapter.GenerateImageRequest
	calls    int
	gotWidth int
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) GenerateImage(ctx context.Context, req adapter.GenerateImageRequest) (*adapter.GeneratedImage, error) {
	f.calls++
	f.lastReq = req
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(req.Image)); err == nil {
		f.gotWidth = cfg.Width
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.out, f.err
}

func jpegOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 10 {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newJob(t *testing.T, repo interface {
	Create(context.Context, *model.ColoringRequest) (*model.ColoringRequest, error)
}, data []byte) model.GenerationJob {
	t.Helper()
	rec, err := repo.Create(context.Background(), model.NewColoringRequest("data:image/jpeg;base64,AAAA"))
	require.NoError(t, err)
	return model.GenerationJob{RequestID: rec.ID, Image: data, Filename: "photo.jpg", MimeType: "image/jpeg"}
}

func strategy() worker.Strategy {
	return worker.Strategy{Provider: "fake", Model: "fake-1", Prompt: "coloring page please", Timeout: time.Second}
}

func TestProcess_SuccessCompletesWithInlineImage(t *testing.T) {
	repo := memory.NewColoringRequestRepo()
	gen := &fakeGenerator{out: &adapter.GeneratedImage{Data: []byte("png-bytes"), MimeType: "image/png"}}
	p := worker.NewColoringJobProcessor(repo, imageproc.NewNormalizer(1024), gen, strategy(), nil)

	job := newJob(t, repo, jpegOf(t, 2000, 1500))
	require.NoError(t, p.Process(context.Background(), job))

	got, err := repo.FindByID(context.Background(), job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.ColoringStatusCompleted, got.Status)
	assert.Equal(t, adapter.DataURI("image/png", []byte("png-bytes")), got.ColoringPageURL)
	assert.False(t, got.StartedAt.IsZero())

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1024, gen.gotWidth)
	assert.Equal(t, "image/png", gen.lastReq.MimeType)
	assert.Equal(t, "coloring page please", gen.lastReq.Prompt)
	assert.Equal(t, "fake-1", gen.lastReq.Model)
}

func TestProcess_HostedURL(t *testing.T) {
	repo := memory.NewColoringRequestRepo()
	gen := &fakeGenerator{out: &adapter.GeneratedImage{URL: "https://cdn.example/page.png"}}
	p := worker.NewColoringJobProcessor(repo, imageproc.NewNormalizer(1024), gen, strategy(), nil)

	job := newJob(t, repo, jpegOf(t, 300, 200))
	require.NoError(t, p.Process(context.Background(), job))

	got, _ := repo.FindByID(context.Background(), job.RequestID)
	assert.Equal(t, model.ColoringStatusCompleted, got.Status)
	assert.Equal(t, "https://cdn.example/page.png", got.ColoringPageURL)
	assert.Equal(t, 300, gen.gotWidth)
}

func TestProcess_FailuresMarkFailed(t *testing.T) {
	tests := []struct {
		name   string
		gen    *fakeGenerator
		data   func(t *testing.T) []byte
		reason string
		calls  int
	}{
		{
			name:   "provider error",
			gen:    &fakeGenerator{err: errors.New("upstream 500")},
			data:   func(t *testing.T) []byte { return jpegOf(t, 100, 100) },
			reason: "upstream 500",
			calls:  1,
		},
		{
			name:   "empty result",
			gen:    &fakeGenerator{out: &adapter.GeneratedImage{}},
			data:   func(t *testing.T) []byte { return jpegOf(t, 100, 100) },
			reason: domain.ErrEmptyGeneration.Error(),
			calls:  1,
		},
		{
			name:   "nil result",
			gen:    &fakeGenerator{},
			data:   func(t *testing.T) []byte { return jpegOf(t, 100, 100) },
			reason: domain.ErrEmptyGeneration.Error(),
			calls:  1,
		},
		{
			name:   "undecodable image",
			gen:    &fakeGenerator{out: &adapter.GeneratedImage{URL: "x"}},
			data:   func(t *testing.T) []byte { return []byte("\xff\xd8\xff\xe0 truncated jpeg") },
			reason: domain.StageNormalize,
			calls:  0,
		},
		{
			name:   "timeout",
			gen:    &fakeGenerator{block: true},
			data:   func(t *testing.T) []byte { return jpegOf(t, 100, 100) },
			reason: context.DeadlineExceeded.Error(),
			calls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewColoringRequestRepo()
			st := strategy()
			st.Timeout = 30 * time.Millisecond
			p := worker.NewColoringJobProcessor(repo, imageproc.NewNormalizer(1024), tt.gen, st, nil)

			job := newJob(t, repo, tt.data(t))
			require.NoError(t, p.Process(context.Background(), job))

			got, err := repo.FindByID(context.Background(), job.RequestID)
			require.NoError(t, err)
			assert.Equal(t, model.ColoringStatusFailed, got.Status)
			assert.Empty(t, got.ColoringPageURL)
			assert.True(t, strings.Contains(got.FailureReason, tt.reason), "reason %q", got.FailureReason)
			assert.Equal(t, tt.calls, tt.gen.calls)
		})
	}
}

func TestProcess_AlreadyTerminalSkipsGeneration(t *testing.T) {
	repo := memory.NewColoringRequestRepo()
	gen := &fakeGenerator{out: &adapter.GeneratedImage{URL: "https://cdn.example/late.png"}}
	p := worker.NewColoringJobProcessor(repo, imageproc.NewNormalizer(1024), gen, strategy(), nil)

	job := newJob(t, repo, jpegOf(t, 100, 100))
	_, err := repo.Update(context.Background(), job.RequestID, model.FailedPatch("reaped"))
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), job))
	assert.Zero(t, gen.calls)
	got, _ := repo.FindByID(context.Background(), job.RequestID)
	assert.Equal(t, model.ColoringStatusFailed, got.Status)
	assert.Equal(t, "reaped", got.FailureReason)
}

// stepGenerator announces each call on started and waits for a value on release.
type stepGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *stepGenerator) Name() string { return "step" }

func (g *stepGenerator) GenerateImage(ctx context.Context, req adapter.GenerateImageRequest) (*adapter.GeneratedImage, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return &adapter.GeneratedImage{URL: "https://cdn.example/page.png"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestProcess_QueuedJobIsNotReaped(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewColoringRequestRepo()
	norm := imageproc.NewNormalizer(1024)
	gen := &stepGenerator{started: make(chan struct{}, 2), release: make(chan struct{})}
	st := strategy()
	st.Timeout = 5 * time.Second
	p := worker.NewColoringJobProcessor(repo, norm, gen, st, nil)

	pool := worker.NewPool(1, 2, nil)
	pool.Start(ctx)
	defer pool.Stop()
	uc := usecase.NewColoringUseCase(repo, norm, pool, p, nil)

	first, err := uc.Submit(ctx, usecase.Upload{Filename: "a.jpg", Data: jpegOf(t, 40, 40)})
	require.NoError(t, err)
	second, err := uc.Submit(ctx, usecase.Upload{Filename: "b.jpg", Data: jpegOf(t, 40, 40)})
	require.NoError(t, err)

	<-gen.started
	// the second job sits in the queue for longer than maxAge
	const maxAge = 50 * time.Millisecond
	time.Sleep(2 * maxAge)
	queued, err := repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, queued.StartedAt.IsZero())

	gen.release <- struct{}{}
	require.Eventually(t, func() bool {
		got, _ := repo.FindByID(ctx, first.ID)
		return got.Status == model.ColoringStatusCompleted
	}, time.Second, 5*time.Millisecond)
	<-gen.started

	n, err := uc.FailStale(ctx, maxAge)
	require.NoError(t, err)
	assert.Zero(t, n)

	gen.release <- struct{}{}
	require.Eventually(t, func() bool {
		got, _ := repo.FindByID(ctx, second.ID)
		return got.Status == model.ColoringStatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestProcess_UnknownRequestReturnsError(t *testing.T) {
	repo := memory.NewColoringRequestRepo()
	gen := &fakeGenerator{out: &adapter.GeneratedImage{URL: "x"}}
	p := worker.NewColoringJobProcessor(repo, imageproc.NewNormalizer(1024), gen, strategy(), nil)

	err := p.Process(context.Background(), model.GenerationJob{RequestID: 42, Image: jpegOf(t, 10, 10)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcess_RunsOnPool(t *testing.T) {
	repo := memory.NewColoringRequestRepo()
	gen := &fakeGenerator{out: &adapter.GeneratedImage{URL: "https://cdn.example/p.png"}}
	p := worker.NewColoringJobProcessor(repo, imageproc.NewNormalizer(1024), gen, strategy(), nil)
	pool := worker.NewPool(1, 1, nil)
	pool.Start(context.Background())
	defer pool.Stop()

	job := newJob(t, repo, jpegOf(t, 50, 50))
	require.NoError(t, pool.Submit(context.Background(), p.Task(job)))

	require.Eventually(t, func() bool {
		got, _ := repo.FindByID(context.Background(), job.RequestID)
		return got != nil && got.Status == model.ColoringStatusCompleted
	}, time.Second, 5*time.Millisecond)
}
