package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/flagx"
	"github.com/foxhunt72/bscp/internal/timex"
)

// JsonConfig is the file form of Config. Interval fields accept both
// strings such as "200s" and plain numbers of seconds. Zero values leave the
// current setting alone; booleans are pointers for the same reason.
type JsonConfig struct {
	BlockSize             uint64         `json:"blocksize"`
	HashName              string         `json:"hashname"`
	CheckpointPath        string         `json:"digest_save_name"`
	CheckpointInterval    timex.Duration `json:"digest_interval_save"`
	ProgressInterval      timex.Duration `json:"update_progress_interval"`
	SkipRemoteDigest      *bool          `json:"skip_remote_digest"`
	SkipRemoteFinalDigest *bool          `json:"skip_remote_final_digest"`
	Debug                 *bool          `json:"debug"`
	PeerCommand           string         `json:"peer_command"`
	Transport             string         `json:"transport"`
	KnownHostsPath        string         `json:"known_hosts"`
	SSHPort               string         `json:"ssh_port"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// parseJson loads configuration values from the file named by -c or
// -config (either with one or two dashes) into config. Without either flag nothing is loaded.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("%w: read config: %w", common.ErrConfiguration, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("%w: parse config %s: %w", common.ErrConfiguration, jsonConfigFile, err)
	}

	if c.BlockSize != 0 {
		config.BlockSize = c.BlockSize
	}
	if c.CheckpointInterval.Duration != 0 {
		config.CheckpointInterval = c.CheckpointInterval.Duration
	}
	if c.ProgressInterval.Duration != 0 {
		config.ProgressInterval = c.ProgressInterval.Duration
	}
	setString(&config.HashName, c.HashName)
	setString(&config.CheckpointPath, c.CheckpointPath)
	setBool(&config.SkipRemoteDigest, c.SkipRemoteDigest)
	setBool(&config.SkipRemoteFinalDigest, c.SkipRemoteFinalDigest)
	setBool(&config.Debug, c.Debug)
	setString(&config.PeerCommand, c.PeerCommand)
	setString(&config.Transport, c.Transport)
	setString(&config.KnownHostsPath, c.KnownHostsPath)
	setString(&config.SSHPort, c.SSHPort)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	return nil
}
