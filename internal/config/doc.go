// Package config handles configuration loading for sealed-prefs.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, then SEALED_PREFS_* environment overrides are applied. Every
// field has a default, so Load("") returns a usable configuration.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	security:
//	  keyring:
//	    file_password: "${SEALED_PREFS_KEYRING_PASSWORD}"
//
// Unset variables expand to the empty string.
//
// # Environment Overrides
//
// These variables win over the file when set and non-empty:
//
//	SEALED_PREFS_BACKEND           store.backend
//	SEALED_PREFS_PATH              store.path
//	SEALED_PREFS_DRIVER            store.driver
//	SEALED_PREFS_REDIS_URL         store.redis_url
//	SEALED_PREFS_TOP_TIER          security.top_tier
//	SEALED_PREFS_ALIAS_NAMES       security.alias_names
//	SEALED_PREFS_KEYRING_PASSWORD  security.keyring.file_password
//	SEALED_PREFS_LOG_LEVEL         logging.level
//	SEALED_PREFS_LOG_FORMAT        logging.format
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	store:
//	  busy_timeout: "5s"
//	cache:
//	  names_ttl: "10m"
//
// # Configuration Sections
//
// Backing store:
//
//	store:
//	  backend: sqlite          # memory | sqlite | file | redis
//	  path: ~/.config/sealed-prefs/prefs.db
//	  driver: sqlite           # sqlite (modernc) | sqlite3 (mattn)
//	  busy_timeout: "5s"
//	  redis_url: "redis://localhost:6379/0"
//	  redis_prefix: "sealed-prefs"
//
// Tier selection and keys:
//
//	security:
//	  top_tier: KEYSTORE       # KEYSTORE | SYMMETRIC | NONE
//	  tier_namespace: sealed-prefs.tiers
//	  key_namespace: sealed-prefs.keys
//	  alias_names: false
//	  keyring:
//	    service: sealed-prefs
//	    backends: [keychain, secret-service, wincred]
//	    file_dir: ""
//	    file_password: ""
//
// Name cache:
//
//	cache:
//	  names_ttl: "10m"         # 0 disables the cache
//	  names_max: 1024          # 0 disables the cache
//
// Logging:
//
//	logging:
//	  level: info              # debug | info | warn | error
//	  format: text             # text | json
package config
