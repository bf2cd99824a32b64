package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string
	GateID      string

	RotationIntervalSeconds int
	SessionDurationSeconds  int
	ScannerAllowlist        []string
	OperatorAuthSkewSecs    int

	OracleRPCURL          string
	TicketContractAddress string
	OracleTimeoutMillis   int
	ChainID               int64
	TicketOwners          []string
	ClockSkewSeconds      int

	VerifierURL    string
	GatePolicyPath string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int
	ReplayFailClosed       bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// FromEnv reads configuration from the environment. When GATEPASS_CONFIG
// names a YAML file its values are used for every variable the
// environment leaves unset.
func FromEnv() Config {
	return fromLookup(lookupWithFile(os.Getenv("GATEPASS_CONFIG")))
}

func fromLookup(get func(string) string) Config {
	addr := get("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                addr,
		PostgresDSN:             get("POSTGRES_DSN"),
		LogLevel:                envDefault(get, "LOG_LEVEL", "info"),
		GateID:                  envDefault(get, "GATE_ID", "gate-1"),
		RotationIntervalSeconds: envIntDefault(get, "ROTATION_INTERVAL_SECONDS", 30),
		SessionDurationSeconds:  envIntDefault(get, "SESSION_DURATION_SECONDS", 300),
		ScannerAllowlist:        envList(get, "SCANNER_ALLOWLIST"),
		OperatorAuthSkewSecs:    envIntDefault(get, "OPERATOR_AUTH_SKEW_SECONDS", 60),
		OracleRPCURL:            get("ORACLE_RPC_URL"),
		TicketContractAddress:   get("TICKET_CONTRACT_ADDRESS"),
		OracleTimeoutMillis:     envIntDefault(get, "ORACLE_TIMEOUT_MS", 3000),
		ChainID:                 int64(envIntDefault(get, "CHAIN_ID", 0)),
		TicketOwners:            envList(get, "TICKET_OWNERS"),
		ClockSkewSeconds:        envIntDefault(get, "CLOCK_SKEW_SECONDS", 5),
		VerifierURL:             get("GATEPASS_VERIFIER_URL"),
		GatePolicyPath:          get("GATE_POLICY_PATH"),
		RateLimitRequests:       envIntDefault(get, "RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:  envIntDefault(get, "RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:     envBoolDefault(get, "RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:        envIntDefault(get, "RATE_LIMIT_MAX_KEYS", 10000),
		ReplayFailClosed:        envBoolDefault(get, "REPLAY_FAIL_CLOSED", true),
		RedisAddr:               get("REDIS_ADDR"),
		RedisPassword:           get("REDIS_PASSWORD"),
		RedisDB:                 envIntDefault(get, "REDIS_DB", 0),
	}
}

func envDefault(get func(string) string, key, def string) string {
	v := get(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(get func(string) string, key string, def int) int {
	v := get(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(get func(string) string, key string, def bool) bool {
	v := get(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func envList(get func(string) string, key string) []string {
	v := get(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (c Config) RotationInterval() time.Duration {
	return time.Duration(c.RotationIntervalSeconds) * time.Second
}

func (c Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionDurationSeconds) * time.Second
}

func (c Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutMillis) * time.Millisecond
}

func (c Config) OperatorAuthSkew() time.Duration {
	return time.Duration(c.OperatorAuthSkewSecs) * time.Second
}

func (c Config) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
