package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/flagx"
)

// Usage is printed for -h and for malformed command lines.
const Usage = `usage: bscp [flags] <local file> <host>:<remote file>
       bscp [flags] <local file> local:<remote file>

Flags may also follow the positional arguments; everything after -- is positional.`

// parseFlags populates Config from os.Args. Flags may appear before, between
// or after the two positional arguments.
//
//	-blocksize int                  block size in bytes
//	-hashname string                digest algorithm
//	-digest-save-name string        checkpoint location (path, sqlite://, postgres://, s3://)
//	-digest-interval-save int       seconds between checkpoints
//	-update-progress-interval int   seconds between progress reports
//	-s, -skip-remote-digest         send every block without a remote scan
//	-f, -skip-remote-final-digest   skip the final whole-file digest
//	-d, -debug                      debug logging and manifest dump
//	-remote-info-only               print the bscp-remote-only command line
//	-peer-command string            peer program run on the destination host
//	-transport string               exec, native or inproc
//	-known-hosts string             known_hosts file for the native transport
//	-ssh-port string                port for the native transport
//	-s3-region, -s3-endpoint, -s3-access-key, -s3-secret-key
//
// The -c/-config flag is consumed by parseJson and stripped here.
func parseFlags(config *Config) error {
	return parseArgs(config, flagx.StripArgs(os.Args[1:], flagx.ConfigFlags), os.Stderr)
}

func parseArgs(config *Config, args []string, output io.Writer) error {
	fs := flag.NewFlagSet("bscp", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, Usage)
		fs.PrintDefaults()
	}

	fs.Uint64Var(&config.BlockSize, "blocksize", config.BlockSize, "block size in bytes")
	fs.StringVar(&config.HashName, "hashname", config.HashName, "digest algorithm")
	fs.StringVar(&config.CheckpointPath, "digest-save-name", config.CheckpointPath, "checkpoint location")

	checkpointInterval := fs.Int("digest-interval-save", int(config.CheckpointInterval.Seconds()), "save digest every X seconds")
	progressInterval := fs.Int("update-progress-interval", int(config.ProgressInterval.Seconds()), "update progress every X seconds")

	fs.BoolVar(&config.SkipRemoteDigest, "skip-remote-digest", config.SkipRemoteDigest, "skip remote digest initial scan, copy all blocks")
	fs.BoolVar(&config.SkipRemoteDigest, "s", config.SkipRemoteDigest, "short for -skip-remote-digest")
	fs.BoolVar(&config.SkipRemoteFinalDigest, "skip-remote-final-digest", config.SkipRemoteFinalDigest, "skip the final whole-file digest")
	fs.BoolVar(&config.SkipRemoteFinalDigest, "f", config.SkipRemoteFinalDigest, "short for -skip-remote-final-digest")
	fs.BoolVar(&config.Debug, "debug", config.Debug, "debug mode")
	fs.BoolVar(&config.Debug, "d", config.Debug, "short for -debug")
	fs.BoolVar(&config.RemoteInfoOnly, "remote-info-only", config.RemoteInfoOnly, "print the command for a separate remote digest run")

	fs.StringVar(&config.PeerCommand, "peer-command", config.PeerCommand, "peer program on the destination host")
	fs.StringVar(&config.Transport, "transport", config.Transport, "exec, native or inproc")
	fs.StringVar(&config.KnownHostsPath, "known-hosts", config.KnownHostsPath, "known_hosts file for the native transport")
	fs.StringVar(&config.SSHPort, "ssh-port", config.SSHPort, "ssh port for the native transport")

	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "s3-access-key", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "s3-secret-key", config.S3SecretKey, "S3 secret key")

	positional, err := parseInterleaved(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}

	// only flags given on this command line replace earlier layers
	var intervalErr error
	fs.Visit(func(f *flag.Flag) {
		var n int
		var dst *time.Duration
		switch f.Name {
		case "digest-interval-save":
			n, dst = *checkpointInterval, &config.CheckpointInterval
		case "update-progress-interval":
			n, dst = *progressInterval, &config.ProgressInterval
		default:
			return
		}
		if n < 0 {
			intervalErr = fmt.Errorf("%w: -%s must not be negative", common.ErrConfiguration, f.Name)
			return
		}
		*dst = time.Duration(n) * time.Second
	})
	if intervalErr != nil {
		return intervalErr
	}

	if len(positional) != 2 {
		fs.Usage()
		return fmt.Errorf("%w: expected <local file> and <remote>, got %d arguments", common.ErrConfiguration, len(positional))
	}

	host, path, err := ParseRemote(positional[1])
	if err != nil {
		return err
	}

	config.LocalPath = positional[0]
	config.Host = host
	config.RemotePath = path
	return nil
}

// parseInterleaved parses args with fs, resuming after every positional
// argument so flags may follow them. A "--" ends flag parsing.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
