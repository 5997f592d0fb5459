package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/vaxsync/internal/flagx"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so the file may hold "3s" strings or integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	Transport           string         `json:"transport"`
	RESTBaseURL         string         `json:"rest_base_url"`
	DatabasePath        string         `json:"database_path"`
	GuardianID          string         `json:"guardian_id"`
	AccessToken         string         `json:"access_token"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	MaxAttempts         int            `json:"max_attempts"`
	RetryBaseDelay      timex.Duration `json:"retry_base_delay"`
	RetryMaxDelay       timex.Duration `json:"retry_max_delay"`
	LogBackend          string         `json:"log_backend"`
	LogLevel            string         `json:"log_level"`
}

// parseJson overlays Config with the fields present in the JSON file named by
// -c or -config. Absent or zero fields keep their earlier value. Read and
// decode errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.Transport, jc.Transport)
	setString(&cfg.RESTBaseURL, jc.RESTBaseURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.GuardianID, jc.GuardianID)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.LogBackend, jc.LogBackend)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RetryBaseDelay.Duration > 0 {
		cfg.RetryBaseDelay = jc.RetryBaseDelay.Duration
	}
	if jc.RetryMaxDelay.Duration > 0 {
		cfg.RetryMaxDelay = jc.RetryMaxDelay.Duration
	}
	if jc.MaxAttempts > 0 {
		cfg.MaxAttempts = jc.MaxAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
