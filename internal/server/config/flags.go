package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-m", "-d", "-s", "-t", "-r", "-redis", "-hasher", "-l",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string         HTTP bind address (e.g. ":8080")
//	-g string         gRPC health bind address
//	-m string         metrics/healthz bind address
//	-d string         PostgreSQL DSN
//	-s string         storage: postgres | memory
//	-t duration       access token lifetime (e.g. 15m)
//	-r duration       refresh token lifetime (e.g. 168h)
//	-redis string     Redis URL for the profile cache
//	-hasher string    argon2id | bcrypt
//	-l string         log level
//
// Signing secrets are not accepted as flags; set them in the
// environment or the config file.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "gRPC health address and port")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Storage, "s", config.Storage, "storage backend")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&config.RefreshTokenTTL, "r", config.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&config.RedisURL, "redis", config.RedisURL, "redis URL")
	fs.StringVar(&config.Hasher.Algorithm, "hasher", config.Hasher.Algorithm, "hash algorithm")
	fs.StringVar(&config.Log.Level, "l", config.Log.Level, "log level")

	return fs.Parse(args)
}
