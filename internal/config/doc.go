// Package config handles configuration loading for hookgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  token_pepper: "${HOOKGATE_TOKEN_PEPPER}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	database:
//	  path: "/var/lib/hookgate/gateway.db"
//
//	auth:
//	  jwt_secret: "${HOOKGATE_JWT_SECRET}"      # management API auth
//	  token_pepper: "${HOOKGATE_TOKEN_PEPPER}"  # keys the secret hash
//
//	ratelimit:
//	  backend: sqlite        # or redis
//	  redis_addr: ""         # required when backend is redis
//	  default_quota: 60      # per-minute default for new tenants
//	  window: "1m"
//
//	executor:
//	  base_url: "http://executor:9090"
//	  timeout: "30s"
//
//	cache:
//	  credential_ttl: "5s"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
//
// Duration values use Go's time.ParseDuration syntax.
//
// The token pepper must be identical across gateway replicas sharing a
// database, or secrets issued by one replica will not verify on another.
package config
