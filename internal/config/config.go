// Package config loads kerntune settings from defaults, a TOML file, the
// environment and command line flags, in increasing precedence.
package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/recommend"
	"codeberg.org/mutker/kerntune/internal/samplelog"
	"codeberg.org/mutker/kerntune/internal/sysctl"
	"codeberg.org/mutker/kerntune/internal/workload"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigFile = "/etc/kerntune/kerntune.toml"
	DefaultEnvPrefix  = "KERNTUNE"
	ConfigEnv         = "KERNTUNE_CONFIG"
)

type Config struct {
	Interval      time.Duration    `mapstructure:"interval"`
	LogLevel      string           `mapstructure:"log_level"`
	Monitor       bool             `mapstructure:"monitor"`
	DryRun        bool             `mapstructure:"dry_run"`
	Strategy      string           `mapstructure:"strategy"`
	GridFile      string           `mapstructure:"grid_file"`
	GridLimit     int              `mapstructure:"grid_limit"`
	TopK          int              `mapstructure:"top_k"`
	Sink          string           `mapstructure:"sink"`
	SysctlRoot    string           `mapstructure:"sysctl_root"`
	ProcRoot      string           `mapstructure:"proc_root"`
	SysRoot       string           `mapstructure:"sys_root"`
	RestoreOnExit bool             `mapstructure:"restore_on_exit"`
	MetricsAddr   string           `mapstructure:"metrics_addr"`
	PIDDir        string           `mapstructure:"pid_dir"`
	Sampling      SamplingConfig   `mapstructure:"sampling"`
	Workload      WorkloadConfig   `mapstructure:"workload"`
	Models        ModelsConfig     `mapstructure:"models"`
	SampleLog     samplelog.Config `mapstructure:"sample_log"`
}

type SamplingConfig struct {
	Duration time.Duration `mapstructure:"duration"`
	Interval time.Duration `mapstructure:"interval"`
}

type WorkloadConfig struct {
	CPUWorkers int    `mapstructure:"cpu_workers"`
	MemoryMB   int    `mapstructure:"memory_mb"`
	IODir      string `mapstructure:"io_dir"`
}

func (w WorkloadConfig) Options() workload.Options {
	return workload.Options{
		CPUWorkers: w.CPUWorkers,
		MemoryMB:   w.MemoryMB,
		IODir:      w.IODir,
	}
}

type ModelsConfig struct {
	Classifier predict.Config `mapstructure:"classifier"`
	Regressor  predict.Config `mapstructure:"regressor"`
	Scorer     predict.Config `mapstructure:"scorer"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"interval":        "interval",
	"log-level":       "log_level",
	"monitor":         "monitor",
	"dry-run":         "dry_run",
	"strategy":        "strategy",
	"grid-file":       "grid_file",
	"grid-limit":      "grid_limit",
	"top-k":           "top_k",
	"sink":            "sink",
	"sysctl-root":     "sysctl_root",
	"restore":         "restore_on_exit",
	"metrics-addr":    "metrics_addr",
	"pid-dir":         "pid_dir",
	"duration":        "sampling.duration",
	"sample-interval": "sampling.interval",
	"sample-log":      "sample_log.path",
	"sample-format":   "sample_log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", 5*time.Second)
	v.SetDefault("log_level", string(LogLevelInfo))
	v.SetDefault("monitor", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("strategy", recommend.StrategySearch)
	v.SetDefault("grid_file", "")
	v.SetDefault("grid_limit", 100)
	v.SetDefault("top_k", 5)
	v.SetDefault("sink", sysctl.SinkProcfs)
	v.SetDefault("sysctl_root", sysctl.DefaultRoot)
	v.SetDefault("proc_root", "/proc")
	v.SetDefault("sys_root", "/sys")
	v.SetDefault("restore_on_exit", true)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("pid_dir", "/run")

	v.SetDefault("sampling.duration", 10*time.Second)
	v.SetDefault("sampling.interval", 2*time.Second)

	v.SetDefault("workload.cpu_workers", 0)
	v.SetDefault("workload.memory_mb", 256)
	v.SetDefault("workload.io_dir", os.TempDir())

	for _, m := range []string{"classifier", "regressor", "scorer"} {
		v.SetDefault("models."+m+".type", predict.TypeNone)
		v.SetDefault("models."+m+".path", "")
		v.SetDefault("models."+m+".command", "")
		v.SetDefault("models."+m+".args", []string{})
		v.SetDefault("models."+m+".timeout", 30*time.Second)
	}

	v.SetDefault("sample_log.enabled", true)
	v.SetDefault("sample_log.format", samplelog.FormatCSV)
	v.SetDefault("sample_log.path", "/var/lib/kerntune/samples.csv")
	v.SetDefault("sample_log.batch_size", 1)
	v.SetDefault("sample_log.batch_timeout", 10*time.Second)
	v.SetDefault("sample_log.backup_dir", "")
}

// RegisterFlags adds the flags Load knows how to bind.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the configuration file")
	fs.Duration("interval", 5*time.Second, "Control loop interval")
	fs.String("log-level", string(LogLevelInfo), "Log level (debug, info, warning, error)")
	fs.Bool("monitor", false, "Only classify and log, never change parameters")
	fs.Bool("dry-run", false, "Log parameter writes instead of performing them")
	fs.String("strategy", recommend.StrategySearch, "Recommendation strategy (search, regression)")
	fs.String("grid-file", "", "YAML file describing the parameter grid")
	fs.Int("grid-limit", 100, "Maximum grid points to evaluate")
	fs.Int("top-k", 5, "Candidates to report from search")
	fs.String("sink", sysctl.SinkProcfs, "Parameter sink (procfs, exec)")
	fs.String("sysctl-root", sysctl.DefaultRoot, "Root of the sysctl tree")
	fs.Bool("restore", true, "Restore original parameters on exit")
	fs.String("metrics-addr", "", "Address to serve Prometheus metrics on")
	fs.String("pid-dir", "/run", "Directory for the pid file")
	fs.Duration("duration", 10*time.Second, "Sampling run duration")
	fs.Duration("sample-interval", 2*time.Second, "Interval between samples within a run")
	fs.String("sample-log", "", "Sample log path")
	fs.String("sample-format", samplelog.FormatCSV, "Sample log format (csv, sqlite)")
}

// Load resolves the configuration. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	if o.configPath == "" && flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			o.configPath = f.Value.String()
		}
	}

	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, o.configPath); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.WrapWithData(errors.ErrBindFlags, err, struct {
					Flag string
				}{name})
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readConfigFile reads path, falling back to $KERNTUNE_CONFIG and then the
// default location. Only an explicitly named file has to exist.
func readConfigFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(ConfigEnv)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return errors.New().WrapWithData(errors.ErrReadConfig, err, struct {
			Path string
		}{path})
	}

	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	invalid := func(code errors.ErrorCode, field string, value interface{}, reason string) error {
		return errFactory.Wrap(code, &validationError{field: field, value: value, reason: reason})
	}

	if c.Interval <= 0 {
		return invalid(errors.ErrInvalidInterval, "interval", c.Interval, "must be positive")
	}
	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return invalid(errors.ErrInvalidLogLevel, "log_level", c.LogLevel, "must be debug, info, warning or error")
	}
	switch c.Strategy {
	case recommend.StrategySearch, recommend.StrategyRegression:
	default:
		return invalid(errors.ErrInvalidStrategy, "strategy", c.Strategy, "must be search or regression")
	}
	switch c.Sink {
	case sysctl.SinkProcfs, sysctl.SinkExec:
	default:
		return invalid(errors.ErrInvalidConfig, "sink", c.Sink, "must be procfs or exec")
	}
	if c.GridLimit < 0 {
		return invalid(errors.ErrInvalidConfig, "grid_limit", c.GridLimit, "must not be negative")
	}
	if c.TopK <= 0 {
		return invalid(errors.ErrInvalidConfig, "top_k", c.TopK, "must be positive")
	}
	if c.Sampling.Duration <= 0 {
		return invalid(errors.ErrInvalidInterval, "sampling.duration", c.Sampling.Duration, "must be positive")
	}
	if c.Sampling.Interval <= 0 {
		return invalid(errors.ErrInvalidInterval, "sampling.interval", c.Sampling.Interval, "must be positive")
	}
	if err := c.SampleLog.Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return nil
}
