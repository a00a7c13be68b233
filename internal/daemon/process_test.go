package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
)

// writeFakeDaemon writes a uniquely named script so killStrays cannot touch
// anything outside this test.
func writeFakeDaemon(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake daemon script requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), fmt.Sprintf("fake-daemon-%d.sh", os.Getpid()))
	script := "#!/bin/sh\necho booted\necho complaint >&2\nexec sleep 30\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestManager(t *testing.T, command string) *Manager {
	t.Helper()
	cfg := config.DaemonConfig{
		Command:   command,
		Transport: config.TransportUSB,
		LogLines:  50,
	}
	m := NewManager(cfg, logging.NewNop())
	t.Cleanup(m.Stop)
	return m
}

func TestManagerStartStop(t *testing.T) {
	m := newTestManager(t, writeFakeDaemon(t))

	require.NoError(t, m.Start())
	assert.True(t, m.Running())

	require.Eventually(t, func() bool {
		return strings.Contains(strings.Join(m.Logs(), "\n"), "booted")
	}, 2*time.Second, 20*time.Millisecond, "stdout never captured")

	require.Eventually(t, func() bool {
		return strings.Contains(strings.Join(m.Logs(), "\n"), "complaint")
	}, 2*time.Second, 20*time.Millisecond, "stderr never captured")

	m.Stop()
	assert.False(t, m.Running())

	// Stop is idempotent.
	m.Stop()
	assert.False(t, m.Running())
}

func TestManagerRestart(t *testing.T) {
	m := newTestManager(t, writeFakeDaemon(t))

	require.NoError(t, m.Start())
	require.True(t, m.Running())

	require.NoError(t, m.Restart(context.Background()))
	assert.True(t, m.Running())
}

func TestManagerRestartCancelledContext(t *testing.T) {
	m := newTestManager(t, writeFakeDaemon(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, m.Restart(ctx))
	assert.False(t, m.Running())
}

func TestManagerStartBadCommand(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "does-not-exist"))

	assert.Error(t, m.Start())
	assert.False(t, m.Running())
}

func TestLogRingBounds(t *testing.T) {
	ring := newLogRing(3)
	for i := 0; i < 10; i++ {
		ring.Append(fmt.Sprintf("line %d", i))
	}

	lines := ring.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"line 7", "line 8", "line 9"}, lines)
}

func TestLogRingDefaultCapacity(t *testing.T) {
	ring := newLogRing(0)
	ring.Append("hello")
	assert.Equal(t, []string{"hello"}, ring.Lines())
}
