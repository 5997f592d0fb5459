package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/vaxsync/internal/flagx"
	"github.com/dmitrijs2005/vaxsync/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// both "90m" strings and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	RedisAddr                   string         `json:"redis_addr"`
	RedisDB                     int            `json:"redis_db"`
	IdempotencyTTL              timex.Duration `json:"idempotency_ttl"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	LogBackend                  string         `json:"log_backend"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson overlays Config with the non-zero fields of the JSON file named
// by -c or -config. A missing or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrGRPC != "" {
		config.EndpointAddrGRPC = c.EndpointAddrGRPC
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	if c.IdempotencyTTL.Duration > 0 {
		config.IdempotencyTTL = c.IdempotencyTTL.Duration
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.LogBackend != "" {
		config.LogBackend = c.LogBackend
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
}
