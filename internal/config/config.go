package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	DefaultBasePath        = "/PrivacyEmailSystemDemo/"
)

type Config struct {
	HTTPPort int
	BasePath string
	// DemoMode enables the plaintext send path. When false, sends go to the
	// confidential path, which is not implemented and always fails.
	DemoMode bool

	RPCURL          string
	ChainID         int64
	ContractAddress string

	WalletPrivateKey         string
	WalletKeystoreDir        string
	WalletKeystorePassphrase string

	DBPath     string
	AuthSecret string
	SessionTTL time.Duration

	SMTPRelayEnabled bool
	SMTPPort         int
	SMTPDomain       string
	SMTPAuthEnabled  bool
	SMTPUsername     string
	SMTPPassword     string

	LogLevel slog.Level
}

func Load() Config {
	return Config{
		HTTPPort:                 getEnvInt("HTTP_PORT", 5060),
		BasePath:                 normalizeBasePath(getEnvString("BASE_PATH", DefaultBasePath)),
		DemoMode:                 getEnvBool("DEMO_MODE", true),
		RPCURL:                   getEnvString("RPC_URL", "http://127.0.0.1:8545"),
		ChainID:                  int64(getEnvInt("CHAIN_ID", 0)),
		ContractAddress:          getEnvString("CONTRACT_ADDRESS", DefaultContractAddress),
		WalletPrivateKey:         getEnvString("WALLET_PRIVATE_KEY", ""),
		WalletKeystoreDir:        getEnvString("WALLET_KEYSTORE_DIR", ""),
		WalletKeystorePassphrase: getEnvString("WALLET_KEYSTORE_PASSPHRASE", ""),
		DBPath:                   getEnvString("DB_PATH", ""),
		AuthSecret:               getEnvString("AUTH_SECRET", ""),
		SessionTTL:               getEnvDuration("SESSION_TTL", 24*time.Hour),
		SMTPRelayEnabled:         getEnvBool("SMTP_RELAY_ENABLED", false),
		SMTPPort:                 getEnvInt("SMTP_PORT", 2025),
		SMTPDomain:               getEnvString("SMTP_DOMAIN", "chainmail"),
		SMTPAuthEnabled:          getEnvBool("SMTP_AUTH_ENABLED", true),
		SMTPUsername:             getEnvString("SMTP_USERNAME", "chainmail"),
		SMTPPassword:             getEnvString("SMTP_PASSWORD", "chainmail"),
		LogLevel:                 getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// normalizeBasePath returns the path with exactly one leading and one
// trailing slash. An empty path becomes "/".
func normalizeBasePath(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	if value, ok := os.LookupEnv(key); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err == nil {
			return level
		}
	}
	return fallback
}
