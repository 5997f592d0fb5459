// Package config loads runtime configuration for the vaxsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "transport": "grpc",
//	  "rest_base_url": "http://127.0.0.1:8080",
//	  "database_path": "vaxsync.db",
//	  "guardian_id": "g-1001",
//	  "access_token": "...",
//	  "online_check_interval": "3s",
//	  "request_timeout": "15s",
//	  "max_attempts": 5,
//	  "retry_base_delay": "2s",
//	  "retry_max_delay": "5m",
//	  "log_backend": "zap",
//	  "log_level": "debug"
//	}
package config
