// Package config loads Hisser's configuration from defaults, an optional
// config file, and HISSER_* environment variable overrides.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Retention describes how long blocks at a resolution are kept before
// cleanup deletes them.
type Retention struct {
	Resolution time.Duration
	Period     time.Duration
}

// Config is the fully resolved Hisser configuration.
type Config struct {
	DataDir string

	CarbonTCPBind string
	CarbonUDPBind string
	LinkBind      string
	AdminBind     string

	// Resolution is the finest (raw) storage resolution.
	Resolution time.Duration

	// Retentions is ordered from finest to coarsest; Retentions[0].Resolution
	// must equal Resolution.
	Retentions []Retention

	// FlushSize is F, the number of rows a flush drains from the ring
	// once they've aged past the future-tolerance window.
	FlushSize int

	// FutureToleranceFactor and RingFactor describe, rather than
	// parameterize, pkg/buffer's fixed internal ring ratios
	// (futureTolerance=F/2, ringSize=3*F) — surfaced here so operators
	// can see the buffer's effective window size without reading the
	// buffer package itself.
	FutureToleranceFactor int // futureTolerance = F / FutureToleranceFactor
	RingFactor            int // S = RingFactor * F

	CompactRatio float64

	MergeMaxGapFactor int
	MergeMaxSize      int

	HouseworkInterval time.Duration
	TaskRetries       int
	TaskBackoffBase   time.Duration

	AggRules string // "pattern=method,pattern=method,...:default"
}

// Default returns Hisser's out-of-the-box configuration, mirroring the
// original implementation's defaults.py.
func Default() Config {
	return Config{
		DataDir:       "./data",
		CarbonTCPBind: ":2003",
		CarbonUDPBind: ":2003",
		LinkBind:      ":2004",
		AdminBind:     ":7790",
		Resolution:    10 * time.Second,
		Retentions: []Retention{
			{Resolution: 10 * time.Second, Period: 24 * time.Hour},
			{Resolution: 60 * time.Second, Period: 7 * 24 * time.Hour},
			{Resolution: 600 * time.Second, Period: 60 * 24 * time.Hour},
		},
		FlushSize:             60,
		FutureToleranceFactor: 2,
		RingFactor:            3,
		CompactRatio:          2.0,
		MergeMaxGapFactor:     20,
		MergeMaxSize:          3000,
		HouseworkInterval:     3 * time.Second,
		TaskRetries:           3,
		TaskBackoffBase:       30 * time.Second,
		AggRules:              ":avg",
	}
}

// Load builds a Config from defaults, an optional file at configPath (if
// non-empty and present), and HISSER_<KEY> environment overrides, the Go
// analog of the original's config_aware/common_options click decorators.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("HISSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("carbon_tcp_bind", cfg.CarbonTCPBind)
	v.SetDefault("carbon_udp_bind", cfg.CarbonUDPBind)
	v.SetDefault("link_bind", cfg.LinkBind)
	v.SetDefault("admin_bind", cfg.AdminBind)
	v.SetDefault("resolution_seconds", int(cfg.Resolution/time.Second))
	v.SetDefault("flush_size", cfg.FlushSize)
	v.SetDefault("future_tolerance_factor", cfg.FutureToleranceFactor)
	v.SetDefault("ring_factor", cfg.RingFactor)
	v.SetDefault("compact_ratio", cfg.CompactRatio)
	v.SetDefault("merge_max_gap_factor", cfg.MergeMaxGapFactor)
	v.SetDefault("merge_max_size", cfg.MergeMaxSize)
	v.SetDefault("housework_interval_seconds", int(cfg.HouseworkInterval/time.Second))
	v.SetDefault("task_retries", cfg.TaskRetries)
	v.SetDefault("agg_rules", cfg.AggRules)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	cfg.DataDir = v.GetString("data_dir")
	cfg.CarbonTCPBind = v.GetString("carbon_tcp_bind")
	cfg.CarbonUDPBind = v.GetString("carbon_udp_bind")
	cfg.LinkBind = v.GetString("link_bind")
	cfg.AdminBind = v.GetString("admin_bind")
	cfg.Resolution = time.Duration(v.GetInt("resolution_seconds")) * time.Second
	cfg.FlushSize = v.GetInt("flush_size")
	cfg.FutureToleranceFactor = v.GetInt("future_tolerance_factor")
	cfg.RingFactor = v.GetInt("ring_factor")
	cfg.CompactRatio = v.GetFloat64("compact_ratio")
	cfg.MergeMaxGapFactor = v.GetInt("merge_max_gap_factor")
	cfg.MergeMaxSize = v.GetInt("merge_max_size")
	cfg.HouseworkInterval = time.Duration(v.GetInt("housework_interval_seconds")) * time.Second
	cfg.TaskRetries = v.GetInt("task_retries")
	cfg.AggRules = v.GetString("agg_rules")

	return cfg, nil
}
