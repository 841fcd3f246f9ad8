package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	block chan struct{}
}

func (r *countingRefresher) RefreshAll(ctx context.Context) (int, error) {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 1, nil
}

func TestStartRejectsBadSpec(t *testing.T) {
	m := NewManager(&countingRefresher{}, "not a spec")
	assert.Error(t, m.Start())
}

func TestCronRunsRefresh(t *testing.T) {
	r := &countingRefresher{}
	m := NewManager(r, "@every 1s")
	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestRunRefreshSkipsOverlap(t *testing.T) {
	r := &countingRefresher{block: make(chan struct{})}
	m := NewManager(r, "@every 1h")

	done := make(chan struct{})
	go func() {
		m.RunRefresh()
		close(done)
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.RunRefresh()
	assert.EqualValues(t, 1, r.calls.Load())

	close(r.block)
	<-done
}

func TestStopCancelsRunningRefresh(t *testing.T) {
	r := &countingRefresher{block: make(chan struct{})}
	m := NewManager(r, "@every 1h")
	require.NoError(t, m.Start())

	done := make(chan struct{})
	go func() {
		m.RunRefresh()
		close(done)
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh did not stop")
	}
}

type recordingPruner struct {
	keeps []int
}

func (p *recordingPruner) Prune(keep int) (int64, error) {
	p.keeps = append(p.keeps, keep)
	return 3, nil
}

type failingRefresher struct{}

func (failingRefresher) RefreshAll(context.Context) (int, error) {
	return 0, errors.New("provider down")
}

func TestRunRefreshPrunesActivity(t *testing.T) {
	p := &recordingPruner{}
	NewManager(&countingRefresher{}, "@every 1h").WithRetention(p, 500).RunRefresh()
	assert.Equal(t, []int{500}, p.keeps)

	NewManager(failingRefresher{}, "@every 1h").WithRetention(p, 10).RunRefresh()
	assert.Equal(t, []int{500, 10}, p.keeps, "a failed refresh still prunes")

	NewManager(&countingRefresher{}, "@every 1h").WithRetention(p, 0).RunRefresh()
	assert.Len(t, p.keeps, 2, "zero retention keeps everything")
}
