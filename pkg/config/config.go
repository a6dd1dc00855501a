// Package config loads the pipeline's configuration surface (spec.md §6)
// from YAML plus environment overrides, the way the teacher's CRD
// defaulting merges user-supplied spec fields over computed defaults — but
// through viper/mergo instead of a Kubernetes webhook, since there is no
// operator surface here (SPEC_FULL.md §B).
package config

import (
	"fmt"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	"github.com/imdario/mergo"
	"github.com/spf13/viper"
)

// Config is the full configuration surface from spec.md §6's table.
type Config struct {
	// Topology.
	CountEdgeProcessors int `mapstructure:"count_edge_processors"`
	CountVertices       uint64 `mapstructure:"count_vertices"`
	CountTiles          uint64 `mapstructure:"count_tiles"`

	// Per-engine thread counts.
	CountTileReaders    int `mapstructure:"count_tile_readers"`
	CountTileProcessors int `mapstructure:"count_tile_processors"`
	CountFollowers      int `mapstructure:"count_followers"`

	// Vertex-domain thread counts.
	CountIndexReaders    int `mapstructure:"count_index_readers"`
	CountVertexFetchers  int `mapstructure:"count_vertex_fetchers"`
	CountVertexReducers  int `mapstructure:"count_vertex_reducers"`
	CountGlobalReducers  int `mapstructure:"count_global_reducers"`
	CountGlobalFetchers  int `mapstructure:"count_global_fetchers"`
	CountVertexAppliers  int `mapstructure:"count_vertex_appliers"`

	MaxIterations int `mapstructure:"max_iterations"`

	IsWeightedGraph bool `mapstructure:"is_weighted_graph"`
	IsIndex32Bits   bool `mapstructure:"is_index_32_bits"`

	UseSelectiveScheduling bool `mapstructure:"use_selective_scheduling"`
	InMemoryMode           bool `mapstructure:"in_memory_mode"`

	LocalFetcherMode  string `mapstructure:"local_fetcher_mode"`
	GlobalFetcherMode string `mapstructure:"global_fetcher_mode"`
	TileProcessorMode string `mapstructure:"tile_processor_mode"`
	LocalReducerMode  string `mapstructure:"local_reducer_mode"`
	GlobalReducerMode string `mapstructure:"global_reducer_mode"`

	RingCapacityBytes uint64 `mapstructure:"ring_capacity_bytes"`
	MetricsAddr       string `mapstructure:"metrics_addr"`
	DashboardDir      string `mapstructure:"dashboard_dir"`

	// File layout (spec.md §6 "On-disk file set"), produced by the offline
	// compiler and consumed at startup.
	PathToGlobals string   `mapstructure:"path_to_globals"`
	PathsToMeta   []string `mapstructure:"paths_to_meta"` // index e -> engine e's meta dir
	PathsToTile   []string `mapstructure:"paths_to_tile"` // index e -> engine e's tile dir
	PathToLog     string   `mapstructure:"path_to_log"`

	// Algorithm selects the vertexprogram.Program the pipeline runs:
	// "reachability", "sssp", or "pagerank".
	Algorithm string `mapstructure:"algorithm"`
}

// Default returns the baseline configuration every loaded config is merged
// over.
func Default() Config {
	return Config{
		CountEdgeProcessors:  1,
		CountTileReaders:     1,
		CountTileProcessors:  1,
		CountFollowers:       0,
		CountIndexReaders:    1,
		CountVertexFetchers:  1,
		CountVertexReducers:  1,
		CountGlobalReducers:  1,
		CountGlobalFetchers:  0,
		CountVertexAppliers:  1,
		MaxIterations:        100,
		LocalFetcherMode:     "DirectAccess",
		GlobalFetcherMode:    "Disabled",
		TileProcessorMode:    "Default",
		LocalReducerMode:     "GlobalReducer",
		GlobalReducerMode:    "Default",
		RingCapacityBytes:    64 << 20,
		MetricsAddr:          ":9480",
		DashboardDir:         "./dashboard",
		PathToGlobals:        "./globals",
		PathToLog:            "./results",
		Algorithm:            "reachability",
	}
}

// Load reads a YAML config file at path (if non-empty), overlays
// MOSAIC_-prefixed environment variables, and merges the result over
// Default().
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MOSAIC")
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %q: %w", path, err)
		}
	}

	// Unmarshal only sees keys viper knows about; bind each field's env
	// var so MOSAIC_* overrides apply even when the file omits the key.
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("mapstructure"); key != "" {
			_ = v.BindEnv(key)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return cfg, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := mergo.Merge(&cfg, loaded, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("merging config defaults: %w", err)
	}
	return cfg, nil
}

// Watcher reloads Config from its source file on change, the way the
// teacher's controllers re-read a mounted ConfigMap (spec.md §6 leaves
// config reload unspecified; this engine still carries it as an ambient
// concern per SPEC_FULL.md §A).
type Watcher struct {
	v    *viper.Viper
	path string
}

// Watch opens path and starts watching it for changes. onChange is called
// with the freshly merged Config and the fsnotify event that triggered the
// reload. A reload whose Load fails is dropped silently: onChange is not
// called and no error is reported.
func Watch(path string, onChange func(Config, fsnotify.Event)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config: cannot watch an empty path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	w := &Watcher{v: v, path: path}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			return
		}
		onChange(cfg, e)
	})
	v.WatchConfig()
	return w, nil
}

// Validate checks cross-field invariants spec.md §7 calls out as
// ConfigMismatch conditions the runtime must catch before starting.
func (c Config) Validate() error {
	if c.CountEdgeProcessors < 1 {
		return fmt.Errorf("count_edge_processors must be >= 1")
	}
	if c.CountGlobalReducers < 1 {
		return fmt.Errorf("count_global_reducers must be >= 1")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be >= 0")
	}
	switch c.Algorithm {
	case "reachability", "sssp", "pagerank":
	default:
		return fmt.Errorf("unknown algorithm %q", c.Algorithm)
	}
	return nil
}

// JSON renders the effective config for the status page (SPEC_FULL.md §A),
// using goccy/go-json in place of encoding/json for the faster path the
// teacher favors in its own status payloads.
func (c Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
