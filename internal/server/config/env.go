package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays Config fields from environment variables, using the
// `env` struct tags on Config (caarlos0/env).
//
// Supported variables include:
//
//	DATABASE_URL                PostgreSQL DSN
//	REDIS_URL                   Redis URL for distributed sender locks
//	MOVEMENT_RPC_URL            ledger REST endpoint
//	CONTRACT_ADDRESS            publication module address
//	BACKEND_PRIVATE_KEY         capability signing key (base64 or hex)
//	PRIVY_APP_ID, PRIVY_APP_SECRET, PRIVY_JWT_VERIFICATION_KEY
//	COMMIT_TIMEOUT, TX_TTL, ... durations in time.ParseDuration form
//
// Notes:
//   - Unset variables leave the current value alone.
//   - A malformed value panics, like the other layers.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
