package traffic

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"go-sysmonitor/pkg/models"
	"go-sysmonitor/pkg/storage"

	"github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSockets struct {
	mu     sync.Mutex
	cycles [][]net.ConnectionStat
	call   int
	err    error
}

func (f *fakeSockets) Connections(context.Context) ([]net.ConnectionStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := f.cycles[f.call%len(f.cycles)]
	f.call++
	return c, nil
}

type connRecorder struct {
	mu      sync.Mutex
	batches [][]models.ConnectionRecord
}

func (r *connRecorder) PublishConnections(records []models.ConnectionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, records)
}

func (r *connRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func tcp(lip string, lport uint32, rip string, rport uint32) net.ConnectionStat {
	return net.ConnectionStat{
		Type:  syscall.SOCK_STREAM,
		Laddr: net.Addr{IP: lip, Port: lport},
		Raddr: net.Addr{IP: rip, Port: rport},
	}
}

func udp(lip string, lport uint32) net.ConnectionStat {
	return net.ConnectionStat{Type: syscall.SOCK_DGRAM, Laddr: net.Addr{IP: lip, Port: lport}}
}

func newTestEnumerator(t *testing.T, src SocketSource) (*Enumerator, *storage.TrafficLog, *storage.AddressStore, *connRecorder) {
	t.Helper()
	dir := t.TempDir()
	trafficLog := storage.NewTrafficLog(filepath.Join(dir, "network_traffic.csv"))
	addresses := storage.NewAddressStore(filepath.Join(dir, "ip_addresses.csv"))
	rec := &connRecorder{}
	return NewEnumerator(src, trafficLog, addresses, rec, time.Millisecond), trafficLog, addresses, rec
}

func TestProtocolOf(t *testing.T) {
	assert.Equal(t, models.ProtocolTCP, protocolOf(syscall.SOCK_STREAM))
	assert.Equal(t, models.ProtocolUDP, protocolOf(syscall.SOCK_DGRAM))
}

func TestEnumerateFormatsRecords(t *testing.T) {
	src := &fakeSockets{cycles: [][]net.ConnectionStat{{
		tcp("10.0.0.2", 51000, "1.2.3.4", 443),
		tcp("0.0.0.0", 22, "", 0),
		udp("::", 5353),
	}}}
	e, _, _, _ := newTestEnumerator(t, src)

	records, err := e.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, models.ProtocolTCP, records[0].Protocol)
	assert.Equal(t, "10.0.0.2:51000", records[0].Local.String())
	assert.Equal(t, "1.2.3.4:443", records[0].RemoteString())
	assert.Equal(t, models.NotAvailable, records[1].RemoteString())
	assert.Equal(t, models.ProtocolUDP, records[2].Protocol)
	assert.Equal(t, "[::]:5353", records[2].Local.String())
}

func TestCycleAddressSetIsMonotonic(t *testing.T) {
	src := &fakeSockets{cycles: [][]net.ConnectionStat{
		{tcp("10.0.0.2", 51000, "1.2.3.4", 443)},
		{tcp("10.0.0.2", 51001, "5.6.7.8", 80)},
		{udp("10.0.0.2", 68)},
	}}
	e, trafficLog, addresses, rec := newTestEnumerator(t, src)
	ctx := context.Background()

	var previous []string
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Cycle(ctx))
		persisted, err := addresses.Load()
		require.NoError(t, err)
		assert.Subset(t, persisted, previous, "cycle %d removed an address", i)
		previous = persisted
	}
	assert.ElementsMatch(t, []string{"10.0.0.2", "1.2.3.4", "5.6.7.8"}, previous)

	rows, err := trafficLog.Load()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 3, rec.count())
}

func TestCycleRestoresAddressSetOnRestart(t *testing.T) {
	dir := t.TempDir()
	addresses := storage.NewAddressStore(filepath.Join(dir, "ip_addresses.csv"))
	require.NoError(t, addresses.Save([]string{"9.9.9.9"}))

	src := &fakeSockets{cycles: [][]net.ConnectionStat{{tcp("10.0.0.2", 51000, "1.2.3.4", 443)}}}
	e := NewEnumerator(src, storage.NewTrafficLog(filepath.Join(dir, "traffic.csv")), addresses, &connRecorder{}, time.Second)

	require.NoError(t, e.Cycle(context.Background()))
	require.NoError(t, e.Cycle(context.Background()))

	persisted, err := addresses.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.4", "10.0.0.2", "9.9.9.9"}, persisted)
}

func TestCycleEnumerationErrorAbortsCycle(t *testing.T) {
	src := &fakeSockets{err: errors.New("permission denied")}
	e, trafficLog, _, rec := newTestEnumerator(t, src)

	err := e.Cycle(context.Background())
	assert.ErrorIs(t, err, ErrEnumeration)

	rows, err := trafficLog.Load()
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, rec.count())
}

func TestRunContinuesAfterErrorsAndStops(t *testing.T) {
	src := &fakeSockets{err: errors.New("transient")}
	e, _, _, rec := newTestEnumerator(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	src.mu.Lock()
	src.err = nil
	src.cycles = [][]net.ConnectionStat{{tcp("10.0.0.2", 51000, "1.2.3.4", 443)}}
	src.mu.Unlock()

	require.Eventually(t, func() bool { return rec.count() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enumerator did not stop")
	}
}

func TestListeningSocketHasNoRemote(t *testing.T) {
	rec := toRecord(tcp("0.0.0.0", 22, "0.0.0.0", 0))
	assert.Nil(t, rec.Remote)

	rec = toRecord(tcp("::", 22, "::", 0))
	assert.Nil(t, rec.Remote)

	rec = toRecord(tcp("10.0.0.2", 51000, "1.2.3.4", 443))
	require.NotNil(t, rec.Remote)
	assert.Equal(t, "1.2.3.4", rec.Remote.IP)
}
