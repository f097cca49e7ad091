// Package config loads the run configuration from a YAML/JSON file, default
// values and SKUCLUSTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"skucluster/pkg/core"
	"skucluster/pkg/dataprep"
	"skucluster/pkg/model"
	"skucluster/pkg/pipeline"
)

// EnvPrefix prefixes every environment override, e.g. SKUCLUSTER_KMEANS_K.
const EnvPrefix = "skucluster"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "skucluster.yaml"

// Config is the full run configuration.
type Config struct {
	Input    Input    `mapstructure:"input" yaml:"input"`
	Impute   Impute   `mapstructure:"impute" yaml:"impute"`
	Outlier  Outlier  `mapstructure:"outlier" yaml:"outlier"`
	Compress int      `mapstructure:"compress" yaml:"compress"`
	Report   Report   `mapstructure:"report" yaml:"report"`
	KMeans   KMeans   `mapstructure:"kmeans" yaml:"kmeans"`
	Birch    Birch    `mapstructure:"birch" yaml:"birch"`
	Affinity Affinity `mapstructure:"affinity" yaml:"affinity"`
	Log      Log      `mapstructure:"log" yaml:"log"`
}

type Input struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Sheet string `mapstructure:"sheet" yaml:"sheet"`
}

type Impute struct {
	Strategy    string  `mapstructure:"strategy" yaml:"strategy"`
	FillValue   float64 `mapstructure:"fill_value" yaml:"fill_value" split_words:"true"`
	MaxFeatures int     `mapstructure:"max_features" yaml:"max_features" split_words:"true"`
	MaxIter     int     `mapstructure:"max_iter" yaml:"max_iter" split_words:"true"`
	Tol         float64 `mapstructure:"tol" yaml:"tol"`
}

type Outlier struct {
	MaxFeatures   int     `mapstructure:"max_features" yaml:"max_features" split_words:"true"`
	Estimators    int     `mapstructure:"estimators" yaml:"estimators"`
	MaxSamples    int     `mapstructure:"max_samples" yaml:"max_samples" split_words:"true"`
	Contamination float64 `mapstructure:"contamination" yaml:"contamination"`
	Seed          int64   `mapstructure:"seed" yaml:"seed"`
}

type Report struct {
	Plot      bool   `mapstructure:"plot" yaml:"plot"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" split_words:"true"`
}

type KMeans struct {
	Enabled bool  `mapstructure:"enabled" yaml:"enabled"`
	K       int   `mapstructure:"k" yaml:"k"`
	Seed    int64 `mapstructure:"seed" yaml:"seed"`
	MaxIter int   `mapstructure:"max_iter" yaml:"max_iter" split_words:"true"`
	NInit   int   `mapstructure:"n_init" yaml:"n_init" split_words:"true"`
}

type Birch struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	K               int     `mapstructure:"k" yaml:"k"`
	Threshold       float64 `mapstructure:"threshold" yaml:"threshold"`
	BranchingFactor int     `mapstructure:"branching_factor" yaml:"branching_factor" split_words:"true"`
}

type Affinity struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	Damping         float64 `mapstructure:"damping" yaml:"damping"`
	MaxIter         int     `mapstructure:"max_iter" yaml:"max_iter" split_words:"true"`
	ConvergenceIter int     `mapstructure:"convergence_iter" yaml:"convergence_iter" split_words:"true"`
	// Preference is the self-similarity of every row; nil uses the median
	// similarity.
	Preference *float64 `mapstructure:"preference" yaml:"preference,omitempty"`
	Seed       int64    `mapstructure:"seed" yaml:"seed"`
}

type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Input:    Input{Sheet: "Sheet1"},
		Impute:   Impute{Strategy: string(dataprep.StrategyMean), MaxFeatures: 6, MaxIter: 10, Tol: 1e-3},
		Outlier:  Outlier{MaxFeatures: 6, Estimators: 100},
		Compress: 2,
		Report:   Report{Plot: true, OutputDir: "plots"},
		KMeans:   KMeans{Enabled: true, K: 8, MaxIter: 300, NInit: 10},
		Birch:    Birch{Enabled: true, K: 8, Threshold: 0.5, BranchingFactor: 50},
		Affinity: Affinity{Enabled: true, Damping: 0.5, MaxIter: 200, ConvergenceIter: 15},
		Log:      Log{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("input.sheet", d.Input.Sheet)

	v.SetDefault("impute.strategy", d.Impute.Strategy)
	v.SetDefault("impute.fill_value", d.Impute.FillValue)
	v.SetDefault("impute.max_features", d.Impute.MaxFeatures)
	v.SetDefault("impute.max_iter", d.Impute.MaxIter)
	v.SetDefault("impute.tol", d.Impute.Tol)

	v.SetDefault("outlier.max_features", d.Outlier.MaxFeatures)
	v.SetDefault("outlier.estimators", d.Outlier.Estimators)
	v.SetDefault("outlier.max_samples", d.Outlier.MaxSamples)
	v.SetDefault("outlier.contamination", d.Outlier.Contamination)
	v.SetDefault("outlier.seed", d.Outlier.Seed)

	v.SetDefault("compress", d.Compress)
	v.SetDefault("report.plot", d.Report.Plot)
	v.SetDefault("report.output_dir", d.Report.OutputDir)

	v.SetDefault("kmeans.enabled", d.KMeans.Enabled)
	v.SetDefault("kmeans.k", d.KMeans.K)
	v.SetDefault("kmeans.seed", d.KMeans.Seed)
	v.SetDefault("kmeans.max_iter", d.KMeans.MaxIter)
	v.SetDefault("kmeans.n_init", d.KMeans.NInit)

	v.SetDefault("birch.enabled", d.Birch.Enabled)
	v.SetDefault("birch.k", d.Birch.K)
	v.SetDefault("birch.threshold", d.Birch.Threshold)
	v.SetDefault("birch.branching_factor", d.Birch.BranchingFactor)

	v.SetDefault("affinity.enabled", d.Affinity.Enabled)
	v.SetDefault("affinity.damping", d.Affinity.Damping)
	v.SetDefault("affinity.max_iter", d.Affinity.MaxIter)
	v.SetDefault("affinity.convergence_iter", d.Affinity.ConvergenceIter)
	v.SetDefault("affinity.seed", d.Affinity.Seed)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Load reads cfgFile (or ./skucluster.yaml when present), applies defaults
// and environment overrides and validates the result.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		v.SetConfigFile(DefaultFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", DefaultFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", core.ErrConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c as YAML to path, creating the parent directory.
func Save(c *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

type validator interface {
	Validate() error
}

// Validate checks every section and the engines and stages it builds. All
// problems are reported together, each wrapping core.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{core.ErrConfiguration}, args...)...))
	}

	if c.Compress < 0 {
		bad("compress must not be negative, got %d", c.Compress)
	}
	if c.Report.Plot && c.Report.OutputDir == "" {
		bad("report.output_dir is required when plotting")
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		bad("log.level %q: %v", c.Log.Level, err)
	}
	if c.Affinity.Preference != nil && (math.IsNaN(*c.Affinity.Preference) || math.IsInf(*c.Affinity.Preference, 0)) {
		bad("affinity.preference must be finite")
	}

	for _, st := range c.Stages() {
		if st.Validate == nil {
			continue
		}
		if err := st.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.Name, err))
		}
	}
	specs := c.Engines()
	if len(specs) == 0 {
		bad("no cluster engine enabled")
	}
	for _, s := range specs {
		if v, ok := s.Engine.(validator); ok {
			if err := v.Validate(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ImputerConfig maps the impute section onto the imputer.
func (c *Config) ImputerConfig() dataprep.ImputerConfig {
	return dataprep.ImputerConfig{
		InitialStrategy: dataprep.Strategy(c.Impute.Strategy),
		FillValue:       c.Impute.FillValue,
		MaxFeatures:     c.Impute.MaxFeatures,
		MaxIter:         c.Impute.MaxIter,
		Tol:             c.Impute.Tol,
	}
}

// ForestOptions maps the outlier section onto isolation forest options.
func (c *Config) ForestOptions() []model.IsolationForestOption {
	return []model.IsolationForestOption{
		model.WithEstimators(c.Outlier.Estimators),
		model.WithMaxSamples(c.Outlier.MaxSamples),
		model.WithMaxFeatures(c.Outlier.MaxFeatures),
		model.WithContamination(c.Outlier.Contamination),
		model.WithRandomState(c.Outlier.Seed),
	}
}

// Stages returns the preparation stages in their fixed order: impute, scale,
// then outlier removal.
func (c *Config) Stages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.ImputeStage(c.ImputerConfig()),
		pipeline.ScaleStage(),
		pipeline.OutlierStage(c.ForestOptions()...),
	}
}

// Engines returns a spec for every enabled engine. Each call builds fresh
// engines.
func (c *Config) Engines() []pipeline.ClusterSpec {
	var specs []pipeline.ClusterSpec
	add := func(name string, e model.Clusterer) {
		specs = append(specs, pipeline.ClusterSpec{Name: name, Engine: e, Compress: c.Compress})
	}
	if c.KMeans.Enabled {
		km := model.NewKMeans(c.KMeans.K, c.KMeans.Seed)
		km.MaxIter, km.NInit = c.KMeans.MaxIter, c.KMeans.NInit
		add("KMeans", km)
	}
	if c.Birch.Enabled {
		add("Birch", model.NewBirch(c.Birch.K, c.Birch.Threshold, c.Birch.BranchingFactor))
	}
	if c.Affinity.Enabled {
		ap := model.NewAffinityPropagation(c.Affinity.Damping)
		ap.MaxIter, ap.ConvergenceIter, ap.Seed = c.Affinity.MaxIter, c.Affinity.ConvergenceIter, c.Affinity.Seed
		if c.Affinity.Preference != nil {
			ap.Preference = *c.Affinity.Preference
		}
		add("Affinity Propagation", ap)
	}
	return specs
}
