//go:build !windows

package daemon

import (
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_Stop_TerminatesProcess(t *testing.T) {
	child := exec.Command("sleep", "30")
	require.NoError(t, child.Start())
	exited := make(chan struct{})
	go func() {
		_ = child.Wait()
		close(exited)
	}()

	pf := NewPIDFile(filepath.Join(t.TempDir(), "test.pid"))
	require.NoError(t, pf.WritePID(child.Process.Pid))

	require.NoError(t, pf.Stop(5*time.Second))

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		_ = child.Process.Kill()
		t.Fatal("process did not exit")
	}
	_, running := pf.IsRunning()
	assert.False(t, running)
}
