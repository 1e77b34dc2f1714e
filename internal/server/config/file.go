package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TOKENKEEPER_HTTP_ADDR or
// TOKENKEEPER_HASHER_ALGORITHM.
const EnvPrefix = "TOKENKEEPER"

// Secret and service URLs also accept their conventional unprefixed names.
var envAliases = map[string][]string{
	"access_token_secret":  {"JWT_ACCESS_TOKEN_KEY"},
	"refresh_token_secret": {"JWT_UPDATE_TOKEN_KEY"},
	"redis_url":            {"REDIS_URL"},
	"database_dsn":         {"DATABASE_URL"},
}

// loadFileAndEnv overlays the config file at path (if any) and then the
// environment onto cfg. The file format follows the extension.
func loadFileAndEnv(cfg *Config, path string) error {
	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(key)
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("http_addr", c.HTTPAddr)
	v.SetDefault("grpc_health_addr", c.GRPCHealthAddr)
	v.SetDefault("metrics_addr", c.MetricsAddr)
	v.SetDefault("storage", c.Storage)
	v.SetDefault("database_dsn", c.DatabaseDSN)
	v.SetDefault("access_token_secret", c.AccessTokenSecret)
	v.SetDefault("refresh_token_secret", c.RefreshTokenSecret)
	v.SetDefault("access_token_ttl", c.AccessTokenTTL)
	v.SetDefault("refresh_token_ttl", c.RefreshTokenTTL)
	v.SetDefault("token_issuer", c.TokenIssuer)
	v.SetDefault("password_min_length", c.PasswordMinLength)
	v.SetDefault("password_max_length", c.PasswordMaxLength)

	v.SetDefault("hasher.algorithm", c.Hasher.Algorithm)
	v.SetDefault("hasher.bcrypt_cost", c.Hasher.BcryptCost)
	v.SetDefault("hasher.argon2_memory_kib", c.Hasher.Argon2MemoryKiB)
	v.SetDefault("hasher.argon2_iterations", c.Hasher.Argon2Iterations)
	v.SetDefault("hasher.argon2_parallelism", c.Hasher.Argon2Parallelism)

	v.SetDefault("redis_url", c.RedisURL)
	v.SetDefault("profile_cache_ttl", c.ProfileCacheTTL)

	v.SetDefault("log.backend", c.Log.Backend)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.pretty", c.Log.Pretty)

	v.SetDefault("otel.enable", c.OTEL.Enable)
	v.SetDefault("otel.endpoint", c.OTEL.Endpoint)
	v.SetDefault("otel.service_name", c.OTEL.ServiceName)
	v.SetDefault("otel.sample_ratio", c.OTEL.SampleRatio)

	v.SetDefault("shutdown_timeout", c.ShutdownTimeout)
}
