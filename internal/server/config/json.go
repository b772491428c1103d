package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/flagx"
	"github.com/DariusIMP/publish3-backend/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. Interval fields use timex.Duration, which parses both
// string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading the JSON
// configuration file. After unmarshalling, the fields that are set are
// copied into the runtime Config, which uses time.Duration.
type JsonConfig struct {
	HTTPAddr       string `json:"http_addr"`
	DatabaseDSN    string `json:"database_dsn"`
	RedisURL       string `json:"redis_url"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`

	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	LedgerRPCURL    string         `json:"ledger_rpc_url"`
	ContractAddress string         `json:"contract_address"`
	ContractModule  string         `json:"contract_module"`
	GasBudget       uint64         `json:"gas_budget"`
	GasUnitPrice    uint64         `json:"gas_unit_price"`
	TxTTL           timex.Duration `json:"tx_ttl"`
	CapabilityTTL   timex.Duration `json:"capability_ttl"`
	FinalityTimeout timex.Duration `json:"finality_timeout"`
	PollInterval    timex.Duration `json:"poll_interval"`
	CommitTimeout   timex.Duration `json:"commit_timeout"`

	BackendPrivateKey string `json:"backend_private_key"`

	PrivyAppID              string `json:"privy_app_id"`
	PrivyAppSecret          string `json:"privy_app_secret"`
	PrivyJWTVerificationKey string `json:"privy_jwt_verification_key"`
	PrivyAPIBaseURL         string `json:"privy_api_base_url"`

	LogLevel   string `json:"log_level"`
	LogBackend string `json:"log_backend"`
}

// parseJson loads configuration values from a JSON file into config.
//
// The file path comes from the -c or -config command-line flags (see
// flagx.ConfigPath). If neither is set, no file is loaded.
//
// If the file cannot be read or contains invalid JSON, the function panics.
//
// Merge rules:
//   - strings overwrite the current value only when non-empty
//   - numbers and durations overwrite only when positive
//
// Defaults are applied before this layer; environment variables and
// command-line flags are applied after it.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisURL, c.RedisURL)
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}

	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.LedgerRPCURL, c.LedgerRPCURL)
	setString(&config.ContractAddress, c.ContractAddress)
	setString(&config.ContractModule, c.ContractModule)
	if c.GasBudget > 0 {
		config.GasBudget = c.GasBudget
	}
	if c.GasUnitPrice > 0 {
		config.GasUnitPrice = c.GasUnitPrice
	}
	setDuration(&config.TxTTL, c.TxTTL)
	setDuration(&config.CapabilityTTL, c.CapabilityTTL)
	setDuration(&config.FinalityTimeout, c.FinalityTimeout)
	setDuration(&config.PollInterval, c.PollInterval)
	setDuration(&config.CommitTimeout, c.CommitTimeout)

	setString(&config.BackendPrivateKey, c.BackendPrivateKey)

	setString(&config.PrivyAppID, c.PrivyAppID)
	setString(&config.PrivyAppSecret, c.PrivyAppSecret)
	setString(&config.PrivyJWTVerificationKey, c.PrivyJWTVerificationKey)
	setString(&config.PrivyAPIBaseURL, c.PrivyAPIBaseURL)

	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogBackend, c.LogBackend)
}

// setString overwrites dst when v is non-empty.
func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// setDuration overwrites dst when v is positive.
func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
