package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/flagx"
)

var knownFlags = []string{"-a", "-t", "-u", "-d", "-g", "-k", "-i", "-r", "-m", "-b", "-l"}

// parseFlags populates Config fields from command-line flags.
//
//	-a string   address and port of the gRPC endpoint
//	-t string   transport, grpc or rest
//	-u string   base URL of the REST endpoint
//	-d string   path of the local database
//	-g string   guardian id to sign in as
//	-k string   access token
//	-i int      online check interval (seconds)
//	-r int      request timeout (seconds)
//	-m int      delivery attempts before an item is dead-lettered
//	-b string   log backend, slog or zap
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs so unknown arguments are ignored.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.Transport, "t", cfg.Transport, "transport: grpc or rest")
	fs.StringVar(&cfg.RESTBaseURL, "u", cfg.RESTBaseURL, "REST base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.GuardianID, "g", cfg.GuardianID, "guardian id")
	fs.StringVar(&cfg.AccessToken, "k", cfg.AccessToken, "access token")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	requestTimeout := fs.Int("r", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&cfg.MaxAttempts, "m", cfg.MaxAttempts, "delivery attempts before dead-lettering")
	fs.StringVar(&cfg.LogBackend, "b", cfg.LogBackend, "log backend: slog or zap")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
