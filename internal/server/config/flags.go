package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-e", "-n", "-i", "-s", "-t", "-b", "-l"}

// parseFlags populates server Config fields from command-line flags.
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-e string   redis address
//	-n int      redis database number
//	-i int      idempotency key lifetime, hours
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-b string   log backend, slog or zap
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first so subcommand names and
// cobra flags do not reach this flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "e", config.RedisAddr, "redis address")
	fs.IntVar(&config.RedisDB, "n", config.RedisDB, "redis database")
	idempotencyTTL := fs.Int("i", int(config.IdempotencyTTL.Hours()), "idempotency key ttl (in hours)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	fs.StringVar(&config.LogBackend, "b", config.LogBackend, "log backend: slog or zap")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.IdempotencyTTL = time.Duration(*idempotencyTTL) * time.Hour
	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
