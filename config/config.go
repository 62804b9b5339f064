package config

import (
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// BreakerConfig holds breaker thresholds. Durations are strings so they can
// be written as "60s" in YAML and validated before parsing.
type BreakerConfig struct {
	FailureRateThreshold      float64 `mapstructure:"failure_rate_threshold"`
	MinimumCalls              int     `mapstructure:"minimum_calls"`
	WindowSize                int     `mapstructure:"window_size"`
	OpenStateWait             string  `mapstructure:"open_state_wait"`
	HalfOpenPermittedCalls    int     `mapstructure:"half_open_permitted_calls"`
	SlowCallDurationThreshold string  `mapstructure:"slow_call_duration_threshold"`
	SlowCallRateThreshold     float64 `mapstructure:"slow_call_rate_threshold"`
}

type TimeLimiterConfig struct {
	Timeout string `mapstructure:"timeout"`
}

// OperationConfig overrides the global breaker and time limiter settings for
// one named operation. Zero fields inherit the global values.
type OperationConfig struct {
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	TimeLimiter TimeLimiterConfig `mapstructure:"time_limiter"`
}

type Config struct {
	Server      ServerConfig               `mapstructure:"server"`
	Logging     LoggingConfig              `mapstructure:"logging"`
	Metrics     MetricsConfig              `mapstructure:"metrics"`
	Breaker     BreakerConfig              `mapstructure:"breaker"`
	TimeLimiter TimeLimiterConfig          `mapstructure:"time_limiter"`
	Operations  map[string]OperationConfig `mapstructure:"operations"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("metrics.buffer_size", 1000)
	viper.SetDefault("breaker.failure_rate_threshold", 50)
	viper.SetDefault("breaker.minimum_calls", 100)
	viper.SetDefault("breaker.window_size", 100)
	viper.SetDefault("breaker.open_state_wait", "60s")
	viper.SetDefault("breaker.half_open_permitted_calls", 10)
	viper.SetDefault("breaker.slow_call_rate_threshold", 100)
	viper.SetDefault("time_limiter.timeout", "5s")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(validateBreakerConfig),
		),
		validation.Field(&c.TimeLimiter,
			validation.Required,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TimeLimiterConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TimeLimiterConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Operations,
			validation.Each(validation.By(validateOperationConfig)),
		),
	)
}

func validateBreakerConfig(value interface{}) error {
	bc, ok := value.(BreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
	}
	return validation.ValidateStruct(&bc,
		validation.Field(&bc.FailureRateThreshold,
			validation.Required,
			validation.By(validatePercent),
		),
		validation.Field(&bc.MinimumCalls,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.WindowSize,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.OpenStateWait,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&bc.HalfOpenPermittedCalls,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.SlowCallDurationThreshold,
			validation.By(validateOptionalDuration),
		),
		validation.Field(&bc.SlowCallRateThreshold,
			validation.By(validateOptionalPercent),
		),
	)
}

// validateBreakerOverride accepts partial breaker settings: zero fields
// inherit the global configuration.
func validateBreakerOverride(value interface{}) error {
	bc, ok := value.(BreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
	}
	return validation.ValidateStruct(&bc,
		validation.Field(&bc.FailureRateThreshold,
			validation.By(validateOptionalPercent),
		),
		validation.Field(&bc.MinimumCalls,
			validation.Min(0),
		),
		validation.Field(&bc.WindowSize,
			validation.Min(0),
		),
		validation.Field(&bc.OpenStateWait,
			validation.By(validateOptionalDuration),
		),
		validation.Field(&bc.HalfOpenPermittedCalls,
			validation.Min(0),
		),
		validation.Field(&bc.SlowCallDurationThreshold,
			validation.By(validateOptionalDuration),
		),
		validation.Field(&bc.SlowCallRateThreshold,
			validation.By(validateOptionalPercent),
		),
	)
}

func validateOperationConfig(value interface{}) error {
	oc, ok := value.(OperationConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an OperationConfig")
	}
	return validation.ValidateStruct(&oc,
		validation.Field(&oc.Breaker,
			validation.By(validateBreakerOverride),
		),
		validation.Field(&oc.TimeLimiter,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TimeLimiterConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TimeLimiterConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.Timeout,
						validation.By(validateOptionalDuration),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateOptionalDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if durationStr == "" {
		return nil
	}

	return validateDuration(durationStr)
}

func validatePercent(value interface{}) error {
	percent, ok := value.(float64)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a number")
	}

	if percent <= 0 || percent > 100 {
		return validation.NewError("validation_invalid_percent", "must be greater than 0 and at most 100")
	}

	return nil
}

func validateOptionalPercent(value interface{}) error {
	percent, ok := value.(float64)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a number")
	}

	if percent == 0 {
		return nil
	}

	return validatePercent(percent)
}
