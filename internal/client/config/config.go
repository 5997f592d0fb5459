package config

import "time"

// Transports understood by the client.
const (
	TransportGRPC = "grpc"
	TransportREST = "rest"
)

// Config holds runtime settings for the vaxsync client.
//
// Durations are time.Duration values; the JSON file accepts "3s" strings.
type Config struct {
	// ServerEndpointAddr is host:port of the gRPC endpoint.
	ServerEndpointAddr string
	// Transport selects the remote client: "grpc" or "rest".
	Transport string
	// RESTBaseURL is used when Transport is "rest".
	RESTBaseURL string

	DatabasePath string
	GuardianID   string
	AccessToken  string

	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration

	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	LogBackend string
	LogLevel   string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.Transport = TransportGRPC
	c.RESTBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "vaxsync.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.MaxAttempts = 5
	c.RetryBaseDelay = 2 * time.Second
	c.RetryMaxDelay = 5 * time.Minute
	c.LogBackend = "slog"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
