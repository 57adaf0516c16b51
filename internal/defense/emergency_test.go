package defense

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
	"github.com/Nerds489/ubuntu-tools/internal/infra"
)

// swapRecorder implements domain.ServiceController, tracking swap calls.
type swapRecorder struct {
	calls []string
}

func (c *swapRecorder) RestartService(string) error { return nil }
func (c *swapRecorder) EnableService(string) error  { return nil }
func (c *swapRecorder) DaemonReload() error         { return nil }
func (c *swapRecorder) ReloadSysctl() error         { return nil }
func (c *swapRecorder) ReloadUdev() error           { return nil }
func (c *swapRecorder) MakeSwap(string) error       { return nil }
func (c *swapRecorder) SwapOn(string, int) error    { return nil }
func (c *swapRecorder) SwapOff(string) error        { return nil }

func (c *swapRecorder) SwapOffAll() error {
	c.calls = append(c.calls, "swapoff")
	return nil
}

func (c *swapRecorder) SwapOnAll() error {
	c.calls = append(c.calls, "swapon")
	return nil
}

func newCleaner(t *testing.T, mem domain.MemoryReader, procs domain.ProcessManager, svc domain.ServiceController) *EmergencyCleaner {
	t.Helper()
	return NewEmergencyCleaner(
		mem, infra.NewFileStoreWithRoot(t.TempDir()), svc, procs,
		testPolicy(), nil, zap.NewNop())
}

func TestEmergencySkipsKillsWhenReclaimSuffices(t *testing.T) {
	mem := &scriptedMemory{stats: []domain.MemoryStats{
		usage(96), // before
		usage(88), // after reclaim, already under the watermark
		usage(88), // final
	}}
	procs := &fakeProcs{procs: []domain.ProcessInfo{
		{PID: 10, Name: "slack", MemoryPercent: 5},
	}}

	report, err := newCleaner(t, mem, procs, &swapRecorder{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Killed)
	assert.Empty(t, procs.killed)
	assert.Equal(t, 96.0, report.Before.UsedPercent)
	assert.Equal(t, 88.0, report.AfterReclaim.UsedPercent)
	assert.Equal(t, 88.0, report.Final.UsedPercent)
}

func TestEmergencyKillsLeastEssentialFirstUntilRecovered(t *testing.T) {
	mem := &scriptedMemory{stats: []domain.MemoryStats{
		usage(97), // before
		usage(96), // after reclaim, still over the watermark
		usage(92), // after slack dies
		usage(88), // after chrome dies, recovered
	}}
	procs := &fakeProcs{procs: []domain.ProcessInfo{
		{PID: 20, Name: "firefox", MemoryPercent: 10},
		{PID: 21, Name: "slack", MemoryPercent: 8},
		{PID: 22, Name: "chrome", MemoryPercent: 15},
	}}

	report, err := newCleaner(t, mem, procs, &swapRecorder{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"slack", "chrome"}, report.Killed,
		"kill-list order respected, firefox spared once usage recovered")
	assert.Equal(t, []int{21, 22}, procs.killed)
}

func TestEmergencyTogglesSwapOffThenOn(t *testing.T) {
	mem := &scriptedMemory{stats: []domain.MemoryStats{usage(50)}}
	svc := &swapRecorder{}

	report, err := newCleaner(t, mem, &fakeProcs{}, svc).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.SwapToggled)
	assert.Equal(t, []string{"swapoff", "swapon"}, svc.calls)
}

func TestEmergencySkipsSwapToggleWhenItCannotFitBack(t *testing.T) {
	stats := usage(97)
	stats.SwapTotalMB = 4096
	stats.SwapFreeMB = 0 // 4096 MB swapped out
	stats.AvailableMB = 1000

	mem := &scriptedMemory{stats: []domain.MemoryStats{stats}}
	svc := &swapRecorder{}

	report, err := newCleaner(t, mem, &fakeProcs{}, svc).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.SwapToggled)
	assert.Empty(t, svc.calls, "swap stays online when RAM cannot absorb it")
}

func TestEmergencyFailsFastWithoutMemoryAccounting(t *testing.T) {
	mem := &scriptedMemory{err: errors.New("meminfo unreadable")}

	_, err := newCleaner(t, mem, &fakeProcs{}, &swapRecorder{}).Run(context.Background())
	require.Error(t, err)

	var derr *domain.DetectionError
	assert.ErrorAs(t, err, &derr)
}
