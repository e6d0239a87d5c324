package bootstrap

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"chess_analysis/internal/repository/engine"
	"chess_analysis/internal/repository/tablebase"
	"chess_analysis/internal/usecase/quality"
)

type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	IsLocalCors bool   `mapstructure:"LOCAL_CORS"`
	RedisUrl    string `mapstructure:"REDIS_URL"`

	EnginePath             string        `mapstructure:"ENGINE_PATH"`
	EngineArgs             string        `mapstructure:"ENGINE_ARGS"`
	EngineThreads          int           `mapstructure:"ENGINE_THREADS"`
	EngineHashMB           int           `mapstructure:"ENGINE_HASH_MB"`
	EngineInitTimeout      time.Duration `mapstructure:"ENGINE_INIT_TIMEOUT"`
	EngineMaxInitAttempts  int           `mapstructure:"ENGINE_MAX_INIT_ATTEMPTS"`
	EngineEvalDepth        int           `mapstructure:"ENGINE_EVAL_DEPTH"`
	EngineRequestTimeout   time.Duration `mapstructure:"ENGINE_REQUEST_TIMEOUT"`
	EngineCandidateTimeout time.Duration `mapstructure:"ENGINE_CANDIDATE_TIMEOUT"`
	EngineDrainTimeout     time.Duration `mapstructure:"ENGINE_DRAIN_TIMEOUT"`

	TablebaseUrl        string        `mapstructure:"TABLEBASE_URL"`
	TablebaseTimeout    time.Duration `mapstructure:"TABLEBASE_TIMEOUT"`
	TablebaseMaxPieces  int           `mapstructure:"TABLEBASE_MAX_PIECES"`
	TablebaseCacheSize  int           `mapstructure:"TABLEBASE_CACHE_SIZE"`
	TablebaseCacheTTL   time.Duration `mapstructure:"TABLEBASE_CACHE_TTL"`
	TablebaseFailureTTL time.Duration `mapstructure:"TABLEBASE_FAILURE_TTL"`

	ThresholdInaccuracy int `mapstructure:"THRESHOLD_INACCURACY"`
	ThresholdMistake    int `mapstructure:"THRESHOLD_MISTAKE"`
	ThresholdBlunder    int `mapstructure:"THRESHOLD_BLUNDER"`
	ThresholdExcellent  int `mapstructure:"THRESHOLD_EXCELLENT"`
	ThresholdWinning    int `mapstructure:"THRESHOLD_WINNING"`
}

func setDefaults(v *viper.Viper) {
	ec := engine.DefaultConfig()
	tc := tablebase.DefaultConfig()
	th := quality.DefaultThresholds()

	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("LOCAL_CORS", false)
	v.SetDefault("REDIS_URL", "")

	v.SetDefault("ENGINE_PATH", "stockfish")
	v.SetDefault("ENGINE_ARGS", "")
	v.SetDefault("ENGINE_THREADS", 0)
	v.SetDefault("ENGINE_HASH_MB", 0)
	v.SetDefault("ENGINE_INIT_TIMEOUT", ec.InitTimeout)
	v.SetDefault("ENGINE_MAX_INIT_ATTEMPTS", ec.MaxInitAttempts)
	v.SetDefault("ENGINE_EVAL_DEPTH", ec.EvalDepth)
	v.SetDefault("ENGINE_REQUEST_TIMEOUT", ec.RequestTimeout)
	v.SetDefault("ENGINE_CANDIDATE_TIMEOUT", ec.CandidateTimeout)
	v.SetDefault("ENGINE_DRAIN_TIMEOUT", ec.DrainTimeout)

	v.SetDefault("TABLEBASE_URL", tc.URL)
	v.SetDefault("TABLEBASE_TIMEOUT", tc.Timeout)
	v.SetDefault("TABLEBASE_MAX_PIECES", tc.MaxPieces)
	v.SetDefault("TABLEBASE_CACHE_SIZE", tc.CacheSize)
	v.SetDefault("TABLEBASE_CACHE_TTL", tc.TTL)
	v.SetDefault("TABLEBASE_FAILURE_TTL", tc.FailureTTL)

	v.SetDefault("THRESHOLD_INACCURACY", th.Inaccuracy)
	v.SetDefault("THRESHOLD_MISTAKE", th.Mistake)
	v.SetDefault("THRESHOLD_BLUNDER", th.Blunder)
	v.SetDefault("THRESHOLD_EXCELLENT", th.Excellent)
	v.SetDefault("THRESHOLD_WINNING", th.Winning)
}

// Setup reads cfgPath and overlays the environment. A missing file is not an
// error: defaults and environment variables are enough to run.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Engine() engine.Config {
	return engine.Config{
		InitTimeout:      c.EngineInitTimeout,
		MaxInitAttempts:  c.EngineMaxInitAttempts,
		RequestTimeout:   c.EngineRequestTimeout,
		CandidateTimeout: c.EngineCandidateTimeout,
		DrainTimeout:     c.EngineDrainTimeout,
		EvalDepth:        c.EngineEvalDepth,
		Threads:          c.EngineThreads,
		HashMB:           c.EngineHashMB,
	}
}

// EngineCommand returns the binary and its arguments.
func (c *Config) EngineCommand() (string, []string) {
	return c.EnginePath, strings.Fields(c.EngineArgs)
}

func (c *Config) Tablebase() tablebase.Config {
	return tablebase.Config{
		URL:        c.TablebaseUrl,
		Timeout:    c.TablebaseTimeout,
		MaxPieces:  c.TablebaseMaxPieces,
		CacheSize:  c.TablebaseCacheSize,
		TTL:        c.TablebaseCacheTTL,
		FailureTTL: c.TablebaseFailureTTL,
	}
}

func (c *Config) Thresholds() quality.Thresholds {
	return quality.Thresholds{
		Inaccuracy: c.ThresholdInaccuracy,
		Mistake:    c.ThresholdMistake,
		Blunder:    c.ThresholdBlunder,
		Excellent:  c.ThresholdExcellent,
		Winning:    c.ThresholdWinning,
	}
}
