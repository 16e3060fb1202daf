package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-sysmonitor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	counters [][2]uint64
	calls    int
	netErr   error
	cpuErr   error
}

func (f *fakeSource) NetCounters(context.Context) (uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.netErr != nil {
		return 0, 0, f.netErr
	}
	c := f.counters[f.calls%len(f.counters)]
	f.calls++
	return c[0], c[1], nil
}

func (f *fakeSource) CPUPercent(context.Context) (float64, error) {
	return 12.5, f.cpuErr
}

func (f *fakeSource) MemoryPercent(context.Context) (float64, error) { return 40, nil }
func (f *fakeSource) DiskPercent(context.Context) (float64, error) { return 70, nil }
func (f *fakeSource) CoreCounts(context.Context) (int, int, error) { return 4, 8, nil }

type recorder struct {
	mu    sync.Mutex
	snaps []models.MetricsSnapshot
}

func (r *recorder) PublishMetrics(s models.MetricsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func TestThroughputKbps(t *testing.T) {
	assert.Equal(t, 7.8125, ThroughputKbps(1000, 2000))
	assert.Equal(t, 0.0, ThroughputKbps(5000, 5000))
	assert.Equal(t, 0.0, ThroughputKbps(2000, 1000))
}

func TestSampleComputesThroughputOverWindow(t *testing.T) {
	src := &fakeSource{counters: [][2]uint64{{1000, 4000}, {2000, 6048}}}
	s := New(src, &recorder{}, time.Second)

	var slept time.Duration
	s.sleep = func(d time.Duration) { slept = d }

	snap, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Second, slept)
	assert.Equal(t, 7.8125, snap.NetSendKbps)
	assert.Equal(t, 16.0, snap.NetRecvKbps)
	assert.Equal(t, 12.5, snap.CPUPercent)
	assert.Equal(t, 40.0, snap.RAMPercent)
	assert.Equal(t, 70.0, snap.DiskPercent)
	assert.Equal(t, 4, snap.PhysicalCores)
	assert.Equal(t, 8, snap.LogicalCores)
}

func TestSampleWrapsFailures(t *testing.T) {
	src := &fakeSource{counters: [][2]uint64{{0, 0}}, cpuErr: errors.New("no /proc/stat")}
	s := New(src, &recorder{}, time.Second)
	s.sleep = func(time.Duration) {}

	_, err := s.Sample(context.Background())
	assert.ErrorIs(t, err, ErrSampling)
}

func TestRunSkipsFailedCyclesAndStops(t *testing.T) {
	src := &fakeSource{netErr: errors.New("device read error")}
	rec := &recorder{}
	s := New(src, rec, 5*time.Millisecond)
	s.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, rec.len(), "failed cycles must not emit snapshots")

	src.mu.Lock()
	src.netErr = nil
	src.counters = [][2]uint64{{0, 0}}
	src.mu.Unlock()

	require.Eventually(t, func() bool { return rec.len() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop")
	}
}
