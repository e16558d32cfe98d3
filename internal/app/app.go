// Package app wires configuration, logging, the checkpoint store, the
// transport and the progress sink into one driver run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/foxhunt72/bscp/internal/checkpoint"
	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/config"
	"github.com/foxhunt72/bscp/internal/driver"
	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/foxhunt72/bscp/internal/peer"
	"github.com/foxhunt72/bscp/internal/progress"
	"github.com/foxhunt72/bscp/internal/transport"
)

// Exit codes returned by Run.
const (
	ExitOK            = 0
	ExitConfiguration = 1
	ExitPartial       = 2
	ExitFailure       = 3
)

type App struct {
	config *config.Config
	logger logging.Logger
	stdout io.Writer
	stderr io.Writer
	sink   progress.Sink
}

func NewApp(c *config.Config) *App {
	logger := logging.NewTextLogger(os.Stderr, c.Debug)

	// debug output is a log stream, a redrawn progress line would garble it
	var sink progress.Sink = progress.NewConsoleSink(os.Stderr)
	if c.Debug {
		sink = progress.NewLogSink(logger.With("component", "progress"))
	}

	return &App{
		config: c,
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
		sink:   sink,
	}
}

// ExitCode maps a run error onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, common.ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, common.ErrRemoteFailure):
		return ExitFailure
	case errors.Is(err, common.ErrTransportWrite), errors.Is(err, common.ErrInterrupted):
		return ExitPartial
	default:
		return ExitFailure
	}
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		// a second signal gets the default behaviour
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			app.logger.Warn(ctx, "interrupted, stopping after the current block", "signal", sig.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// spawner picks how the peer is started for the configured destination.
func (app *App) spawner() transport.Spawner {
	c := app.config
	switch {
	case c.IsLocal() && c.Transport == config.TransportInProc:
		return transport.NewInProcess(peer.New(app.logger.With("component", "peer")).Serve)
	case c.IsLocal():
		return transport.NewLocal()
	case c.Transport == config.TransportNative:
		return transport.NewNativeSSH(c.Host, transport.NativeOptions{
			Port:           c.SSHPort,
			KnownHostsPath: c.KnownHostsPath,
		})
	default:
		return transport.NewSSH(c.Host)
	}
}

func (app *App) options(checkpointName string) driver.Options {
	c := app.config
	return driver.Options{
		BlockSize:             c.BlockSize,
		HashName:              c.HashName,
		CheckpointName:        checkpointName,
		CheckpointInterval:    c.CheckpointInterval,
		ProgressInterval:      c.ProgressInterval,
		SkipRemoteDigest:      c.SkipRemoteDigest,
		SkipRemoteFinalDigest: c.SkipRemoteFinalDigest,
		Debug:                 c.Debug,
		PeerCommand:           c.PeerCommand,
	}
}

// Run performs one session and returns the process exit code.
func (app *App) Run(ctx context.Context) int {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(ctx, cancelFunc)

	err := app.run(ctx)
	if err != nil {
		app.logger.Error(ctx, "bscp failed", "error", err)
	}
	return ExitCode(err)
}

func (app *App) run(ctx context.Context) error {
	c := app.config

	if c.RemoteInfoOnly {
		cmd, err := driver.RemoteInfoCommand(c.LocalPath, c.RemotePath, c.HashName, c.BlockSize)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.stdout, cmd)
		return nil
	}

	var store *checkpoint.Store
	var name string
	if c.CheckpointPath != "" {
		var err error
		store, name, err = checkpoint.Open(ctx, c.CheckpointPath, checkpoint.Options{
			S3: checkpoint.S3Options{
				Region:       c.S3Region,
				BaseEndpoint: c.S3BaseEndpoint,
				AccessKey:    c.S3AccessKey,
				SecretKey:    c.S3SecretKey,
			},
		}, app.logger)
		if err != nil {
			return fmt.Errorf("open checkpoint: %w", err)
		}
		defer store.Close()
	}

	d := driver.New(app.spawner(), store, app.sink, app.logger)
	res, err := d.Run(ctx, c.LocalPath, c.RemotePath, app.options(name))
	if res != nil {
		fmt.Fprintf(app.stderr, "in=%d out=%d size=%d speedup=%.2f\n",
			res.Stats.BytesIn, res.Stats.BytesOut, res.Size, res.Speedup())
	}
	return err
}
