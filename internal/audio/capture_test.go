package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ergovoice/internal/ports"
)

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o700))
	return path
}

func TestCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	capture := NewCapture(writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcm'\nexec sleep 5\n"))

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := session.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "pcm", string(buf[:n]))

	assert.NoError(t, session.Stop())
	assert.NoError(t, session.Close())
}

func TestCaptureStopKillsStubbornProcess(t *testing.T) {
	t.Parallel()

	capture := NewCapture(writeScript(t, "stubborn.sh", "#!/usr/bin/env bash\ntrap '' INT\nexec sleep 10\n"))
	capture.stopTimeout = 50 * time.Millisecond

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	require.NoError(t, err)

	started := time.Now()
	assert.NoError(t, session.Stop())
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	capture := NewCapture(writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "exited before capture started")
	assert.ErrorContains(t, err, "no such device")
}

func TestCaptureArgs(t *testing.T) {
	t.Parallel()

	args := captureArgs(ports.AudioConfig{InputFormat: "alsa", InputDevice: "hw:1", SampleRate: 8000, Channels: 2})
	assert.Equal(t, []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", "alsa", "-i", "hw:1", "-ac", "2", "-ar", "8000", "-f", "s16le", "-",
	}, args)

	defaults := captureArgs(ports.AudioConfig{})
	assert.Contains(t, defaults, "pulse")
	assert.Contains(t, defaults, "16000")
}

func TestIgnoreExitStatus(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	require.Error(t, err)
	assert.NoError(t, ignoreExitStatus(err))
	assert.Equal(t, os.ErrClosed, ignoreExitStatus(os.ErrClosed))
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	t.Parallel()

	b := &tailBuffer{limit: 5}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg\n"))
	assert.Equal(t, "defg", b.String())
}
