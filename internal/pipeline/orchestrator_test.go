package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/session"
)

func waitForStatus(t *testing.T, o *Orchestrator, id string, want JobStatus) JobSnapshot {
	t.Helper()
	var snap JobSnapshot
	require.Eventually(t, func() bool {
		snap = o.GetJob(id).Snapshot()
		return snap.Status == want
	}, 2*time.Second, 5*time.Millisecond, "job never reached %s", want)
	return snap
}

func TestOrchestratorCompletesJob(t *testing.T) {
	maps := session.NewMemory()
	gen := &recordingGenerator{out: sampleOutline()}
	svc := NewService(stubExtractor{text: "doc text"}, gen, &memBlobs{}, maps, ServiceConfig{}, discardLogger())

	o := NewOrchestrator(PoolConfig{WorkerCount: 2, MaxQueueSize: 4}, svc, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("u1", parser.Input{Data: []byte("doc text"), Filename: "a.txt", Kind: parser.KindDocument}, Options{Depth: outline.DepthBrief, Title: "Мой план"})
	require.NoError(t, o.Submit(job))

	snap := waitForStatus(t, o, job.ID, StatusCompleted)
	assert.NotEmpty(t, snap.MapID)
	assert.NotEmpty(t, snap.URL)
	assert.False(t, snap.Fallback)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "Мой план", gen.reqs[0].Title)

	list, err := maps.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOrchestratorRecordsFailures(t *testing.T) {
	svc := NewService(stubExtractor{err: errors.New("ocr status 500: quota")}, &recordingGenerator{}, &memBlobs{}, nil, ServiceConfig{}, discardLogger())
	o := NewOrchestrator(PoolConfig{WorkerCount: 1, MaxQueueSize: 1}, svc, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("u1", parser.Input{Data: []byte{1}, Kind: parser.KindImage}, Options{})
	require.NoError(t, o.Submit(job))

	snap := waitForStatus(t, o, job.ID, StatusFailed)
	assert.Equal(t, "text recognition failed", snap.Error)
	assert.NotContains(t, snap.Error, "quota")
}

func TestOrchestratorFallbackOutlineStillPublishes(t *testing.T) {
	svc := NewService(stubExtractor{text: "x"}, &recordingGenerator{out: outline.Failed()}, &memBlobs{}, nil, ServiceConfig{}, discardLogger())
	o := NewOrchestrator(PoolConfig{WorkerCount: 1, MaxQueueSize: 1}, svc, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("u1", parser.Input{Data: []byte("x"), Filename: "a.txt", Kind: parser.KindDocument}, Options{})
	require.NoError(t, o.Submit(job))

	snap := waitForStatus(t, o, job.ID, StatusCompleted)
	assert.True(t, snap.Fallback)
	assert.Equal(t, "Ошибка генерации", snap.Title)
}

func TestOrchestratorQueueFull(t *testing.T) {
	svc := NewService(stubExtractor{}, &recordingGenerator{}, &memBlobs{}, nil, ServiceConfig{}, discardLogger())
	// Not started: nothing drains the queue.
	o := NewOrchestrator(PoolConfig{WorkerCount: 1, MaxQueueSize: 1}, svc, discardLogger())

	first := NewJob("u1", parser.Input{}, Options{})
	second := NewJob("u1", parser.Input{}, Options{})
	require.NoError(t, o.Submit(first))
	require.Error(t, o.Submit(second))

	assert.Equal(t, StatusFailed, o.GetJob(second.ID).Snapshot().Status)
	assert.Equal(t, 1, o.QueueDepth())
}
