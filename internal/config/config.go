// Package config handles configuration for the bscp driver, including
// defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxhunt72/bscp/internal/common"
)

// LocalHost is the remote host name that runs the peer on this machine.
const LocalHost = "local"

const (
	TransportExec    = "exec"
	TransportNative  = "native"
	TransportInProc  = "inproc"
	DefaultBlockSize = 65536
)

// Config holds runtime settings for one bscp invocation.
//
// Fields:
//   - BlockSize / HashName: transfer geometry and digest algorithm.
//   - CheckpointPath: resume store location, empty disables checkpoints.
//   - CheckpointInterval / ProgressInterval: time between checkpoints and progress reports.
//   - SkipRemoteDigest / SkipRemoteFinalDigest: skip the manifest scan or the final digest.
//   - RemoteInfoOnly: print the bscp-remote-only command line and exit.
//   - PeerCommand / Transport / KnownHostsPath / SSHPort: how the peer is started.
//   - S3*: credentials and endpoint for s3:// checkpoint locations.
//   - LocalPath / Host / RemotePath: the positional arguments.
type Config struct {
	BlockSize             uint64
	HashName              string
	CheckpointPath        string
	CheckpointInterval    time.Duration
	ProgressInterval      time.Duration
	SkipRemoteDigest      bool
	SkipRemoteFinalDigest bool
	RemoteInfoOnly        bool
	Debug                 bool
	PeerCommand           string
	Transport             string
	KnownHostsPath        string
	SSHPort               string
	S3Region              string
	S3BaseEndpoint        string
	S3AccessKey           string
	S3SecretKey           string

	LocalPath  string
	Host       string
	RemotePath string
}

// LoadDefaults populates Config with the documented defaults.
func (c *Config) LoadDefaults() {
	c.BlockSize = DefaultBlockSize
	c.HashName = "sha256"
	c.CheckpointInterval = 200 * time.Second
	c.ProgressInterval = 30 * time.Second
	c.PeerCommand = "bscp-peer"
	c.Transport = TransportExec
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags and JSON cannot constrain.
func (c *Config) Validate() error {
	if c.BlockSize == 0 {
		return fmt.Errorf("%w: block size must be positive", common.ErrConfiguration)
	}
	switch c.Transport {
	case TransportExec, TransportNative:
	case TransportInProc:
		if c.Host != "" && c.Host != LocalHost {
			return fmt.Errorf("%w: transport %q only serves %s: destinations", common.ErrConfiguration, c.Transport, LocalHost)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", common.ErrConfiguration, c.Transport)
	}
	return nil
}

// IsLocal reports whether the peer runs on this machine.
func (c *Config) IsLocal() bool {
	return c.Host == LocalHost
}

// ParseRemote splits "<host>:<path>" or "local:<path>".
func ParseRemote(remote string) (host, path string, err error) {
	if strings.Count(remote, ":") != 1 {
		return "", "", fmt.Errorf("%w: remote needs to be <hostname>:<blockdevice> or %s:<blockdevice>, got %q",
			common.ErrConfiguration, LocalHost, remote)
	}
	host, path, _ = strings.Cut(remote, ":")
	if host == "" || path == "" {
		return "", "", fmt.Errorf("%w: remote needs to be <hostname>:<blockdevice> or %s:<blockdevice>, got %q",
			common.ErrConfiguration, LocalHost, remote)
	}
	return host, path, nil
}
