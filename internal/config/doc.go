// Package config handles configuration loading for coven-contactcenter.
//
// # Overview
//
// Configuration is loaded from YAML (or TOML, for files ending in .toml)
// with environment variable expansion. The package provides validation and
// sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_CC_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/contactcenter.yaml
//  3. ~/.config/coven/contactcenter.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COVEN_CC_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server and database:
//
//	server:
//	  http_addr: "0.0.0.0:8090"
//	  rate_limit_per_min: 0      # per client IP on write routes, 0 = off
//	  rate_burst: 10
//	database:
//	  path: "/var/lib/coven/contactcenter.db"
//	  retention: "2160h"         # empty keeps history forever
//	  prune_schedule: "@hourly"  # cron syntax
//	  breaker_failures: 5
//	  breaker_timeout: "30s"
//
// Routing:
//
//	routing:
//	  strategy: "longest_idle"   # longest_idle, round_robin
//	  max_attempts: 0            # 0 = until candidates run out
//
// Dashboard polling and presence deduplication:
//
//	dashboard:
//	  poll_interval: "2s"
//	presence:
//	  dedupe_ttl: "5m"
//	  dedupe_size: 10000
//
// Directory:
//
//	directory:
//	  skills:
//	    - name: Language
//	      values: [English, Spanish]
//	  supervisors:
//	    - sign_in_address: "sip:carol@contoso.com"
//	      public_name: "Carol"
//	      instant_message_color: "Blue"
//	  agents:
//	    - sign_in_address: "sip:alice@contoso.com"
//	      public_name: "Alice"
//	      supervisor: "sip:carol@contoso.com"
//	      skills:
//	        Language: English
//
// # Validation
//
// Load() validates required fields, duration syntax, the routing strategy,
// the prune schedule, and the directory: unique skill, supervisor and agent names, non-empty
// skill value sets, and agent skill values that belong to their skill.
package config
