package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/config"
	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/foxhunt72/bscp/internal/progress"
	"github.com/foxhunt72/bscp/internal/transport"
	"github.com/foxhunt72/bscp/internal/wire"
)

func newTestApp(c *config.Config) (*App, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &App{
		config: c,
		logger: logging.NewNopLogger(),
		stdout: &stdout,
		stderr: &stderr,
		sink:   progress.NopSink{},
	}, &stdout, &stderr
}

func localConfig(t *testing.T) (*config.Config, []byte) {
	t.Helper()
	dir := t.TempDir()

	data := make([]byte, 150000)
	_, err := rand.Read(data)
	require.NoError(t, err)

	src := filepath.Join(dir, "src.img")
	require.NoError(t, os.WriteFile(src, data, 0600))

	c := &config.Config{}
	c.LoadDefaults()
	c.Transport = config.TransportInProc
	c.LocalPath = src
	c.Host = config.LocalHost
	c.RemotePath = filepath.Join(dir, "dst.img")
	return c, data
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitConfiguration, ExitCode(fmt.Errorf("x: %w", common.ErrConfiguration)))
	assert.Equal(t, ExitPartial, ExitCode(fmt.Errorf("x: %w", common.ErrTransportWrite)))
	assert.Equal(t, ExitPartial, ExitCode(fmt.Errorf("x: %w", common.ErrInterrupted)))
	assert.Equal(t, ExitFailure, ExitCode(common.ErrChecksumMismatch))
	assert.Equal(t, ExitFailure, ExitCode(common.ErrRemoteHandshake))

	// a peer that failed outranks the partial transfer it caused
	peerFailed := fmt.Errorf("%w: disk full: %w", common.ErrRemoteFailure, common.ErrTransportWrite)
	assert.Equal(t, ExitFailure, ExitCode(peerFailed))
}

func TestRun_LocalInProcess(t *testing.T) {
	c, data := localConfig(t)
	app, _, stderr := newTestApp(c)

	require.Equal(t, ExitOK, app.Run(context.Background()))

	got, err := os.ReadFile(c.RemotePath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Contains(t, stderr.String(), "size=150000 speedup=")
}

func TestRun_SQLiteCheckpoint(t *testing.T) {
	c, _ := localConfig(t)
	c.CheckpointPath = "sqlite://" + filepath.Join(t.TempDir(), "bscp.db") + "#dst"
	c.CheckpointInterval = time.Hour

	app, _, _ := newTestApp(c)
	require.Equal(t, ExitOK, app.Run(context.Background()))

	// the second run resumes from the stored digests and sends nothing
	app, _, stderr := newTestApp(c)
	require.Equal(t, ExitOK, app.Run(context.Background()))
	handshake := wire.HeaderSize + len(c.RemotePath) + len(c.HashName) + 2
	assert.Contains(t, stderr.String(), fmt.Sprintf("out=%d ", handshake))
}

func TestRun_RemoteInfoOnly(t *testing.T) {
	c, _ := localConfig(t)
	c.RemoteInfoOnly = true
	c.RemotePath = "/dev/sdb"

	app, stdout, _ := newTestApp(c)
	require.Equal(t, ExitOK, app.Run(context.Background()))
	assert.Equal(t, "bscp-remote-only '/dev/sdb' 'sha256' 150000 65536 <output_filename>\n", stdout.String())
}

func TestRun_UnknownHash(t *testing.T) {
	c, _ := localConfig(t)
	c.HashName = "crc32"

	app, _, _ := newTestApp(c)
	assert.Equal(t, ExitConfiguration, app.Run(context.Background()))
}

func TestRun_RemoteTooSmall(t *testing.T) {
	c, _ := localConfig(t)
	require.NoError(t, os.WriteFile(c.RemotePath, []byte("tiny"), 0600))

	app, _, _ := newTestApp(c)
	assert.Equal(t, ExitFailure, app.Run(context.Background()))
}

func TestNewApp_Sink(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	assert.IsType(t, &progress.ConsoleSink{}, NewApp(c).sink)

	c.Debug = true
	assert.IsType(t, &progress.LogSink{}, NewApp(c).sink)
}

func TestSpawner(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()

	c.Host = config.LocalHost
	app, _, _ := newTestApp(c)
	assert.IsType(t, &transport.ExecSpawner{}, app.spawner())

	c.Transport = config.TransportInProc
	assert.IsType(t, &transport.InProcess{}, app.spawner())

	c.Host = "backup"
	c.Transport = config.TransportNative
	assert.IsType(t, &transport.NativeSSH{}, app.spawner())

	c.Transport = config.TransportExec
	assert.IsType(t, &transport.ExecSpawner{}, app.spawner())
}
