package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // PAIRING_DATABASE_URL (required)
	NATSURL     string // PAIRING_NATS_URL (optional, empty = no events)

	LeaseDuration time.Duration // PAIRING_LEASE_DURATION (default 30s)
	DefaultTTL    time.Duration // PAIRING_DEFAULT_TTL (default 5m)

	// Sweep settings
	SweepInterval  time.Duration // PAIRING_SWEEP_INTERVAL (default 1m; 0 = disabled)
	AuditRetention time.Duration // PAIRING_AUDIT_RETENTION (default 0 = keep forever)

	ArchiveS3Bucket   string // PAIRING_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string // PAIRING_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string // PAIRING_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string // PAIRING_ARCHIVE_S3_PREFIX (default "pairing/audit")
	ArchiveGitRepo    string // PAIRING_ARCHIVE_GIT_REPO (enables git when set; path to clone)
	ArchiveGitDir     string // PAIRING_ARCHIVE_GIT_DIR (default "audit")
	ArchiveGitBranch  string // PAIRING_ARCHIVE_GIT_BRANCH (default "main")
}

// fileConfig is the TOML file named by PAIRING_CONFIG. Durations are
// strings in time.ParseDuration syntax.
type fileConfig struct {
	DatabaseURL   string `toml:"database_url"`
	NATSURL       string `toml:"nats_url"`
	LeaseDuration string `toml:"lease_duration"`
	DefaultTTL    string `toml:"default_ttl"`

	Sweep struct {
		Interval       string `toml:"interval"`
		AuditRetention string `toml:"audit_retention"`
	} `toml:"sweep"`

	Archive struct {
		S3 struct {
			Bucket   string `toml:"bucket"`
			Endpoint string `toml:"endpoint"`
			Region   string `toml:"region"`
			Prefix   string `toml:"prefix"`
		} `toml:"s3"`
		Git struct {
			Repo   string `toml:"repo"`
			Dir    string `toml:"dir"`
			Branch string `toml:"branch"`
		} `toml:"git"`
	} `toml:"archive"`
}

// Load builds the configuration from the environment. If PAIRING_CONFIG
// names a TOML file, its values are used wherever the matching variable is
// unset.
func Load() (*Config, error) {
	var f fileConfig
	if path := os.Getenv("PAIRING_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("PAIRING_CONFIG %s: %w", path, err)
		}
	}

	c := &Config{
		DatabaseURL:       envOr("PAIRING_DATABASE_URL", f.DatabaseURL, ""),
		NATSURL:           envOr("PAIRING_NATS_URL", f.NATSURL, ""),
		ArchiveS3Bucket:   envOr("PAIRING_ARCHIVE_S3_BUCKET", f.Archive.S3.Bucket, ""),
		ArchiveS3Endpoint: envOr("PAIRING_ARCHIVE_S3_ENDPOINT", f.Archive.S3.Endpoint, ""),
		ArchiveS3Region:   envOr("PAIRING_ARCHIVE_S3_REGION", f.Archive.S3.Region, "us-east-1"),
		ArchiveS3Prefix:   envOr("PAIRING_ARCHIVE_S3_PREFIX", f.Archive.S3.Prefix, "pairing/audit"),
		ArchiveGitRepo:    envOr("PAIRING_ARCHIVE_GIT_REPO", f.Archive.Git.Repo, ""),
		ArchiveGitDir:     envOr("PAIRING_ARCHIVE_GIT_DIR", f.Archive.Git.Dir, "audit"),
		ArchiveGitBranch:  envOr("PAIRING_ARCHIVE_GIT_BRANCH", f.Archive.Git.Branch, "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("PAIRING_DATABASE_URL is required")
	}

	for _, d := range []struct {
		key      string
		file     string
		fallback string
		dst      *time.Duration
	}{
		{"PAIRING_LEASE_DURATION", f.LeaseDuration, "30s", &c.LeaseDuration},
		{"PAIRING_DEFAULT_TTL", f.DefaultTTL, "5m", &c.DefaultTTL},
		{"PAIRING_SWEEP_INTERVAL", f.Sweep.Interval, "1m", &c.SweepInterval},
		{"PAIRING_AUDIT_RETENTION", f.Sweep.AuditRetention, "0", &c.AuditRetention},
	} {
		v, err := time.ParseDuration(envOr(d.key, d.file, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s: must not be negative", d.key)
		}
		*d.dst = v
	}
	if c.LeaseDuration == 0 {
		return nil, fmt.Errorf("PAIRING_LEASE_DURATION: must be positive")
	}
	if c.DefaultTTL < time.Second {
		return nil, fmt.Errorf("PAIRING_DEFAULT_TTL: must be at least 1s")
	}

	return c, nil
}

func envOr(key, fromFile, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fromFile != "" {
		return fromFile
	}
	return fallback
}
