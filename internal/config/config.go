// Package config loads the relayer's configuration from environment
// variables, following the exact getEnvOrDefault/getBoolEnv/getIntEnv
// helper shape used by the teacher's own config packages
// (contract-events-processor/config, stellar-live-source/server/config.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every option named in spec §6's configuration table,
// plus the chain-endpoint and HTTP-surface settings needed to boot
// the core.
type Config struct {
	// HTTP/API surface
	Port       string
	HealthPort string

	// Chain endpoints (consumed by the chain client implementations;
	// concrete RPC semantics are out of scope per spec §1).
	EthereumRPCEndpoint string
	StellarRPCEndpoint  string
	NetworkPassphrase   string

	// spec §6 configuration table
	CacheTTLSeconds                   time.Duration
	BalanceUpdateIntervalSeconds      time.Duration
	ReservationTimeoutSeconds         time.Duration
	ReservationCleanupIntervalSeconds time.Duration
	AuctionDefaultDurationSeconds     time.Duration
	MaxSlippage                       float64
	LowLiquidityThresholdFraction     float64
	CriticalLiquidityThresholdFraction float64
	RPCTimeoutSeconds                 time.Duration
	MonitoringPollIntervalSeconds     time.Duration

	// Safety margin between destination and source escrow timelocks,
	// spec §3.
	EscrowSafetyMarginSeconds time.Duration

	// Loaded from SWEEP_INTERVAL_SECONDS. The relayer's refund sweep
	// runs on its own fixed one-minute interval and does not read this
	// value.
	SweepIntervalSeconds time.Duration

	// SafetyDepositBps is the resolver's own safety deposit, in basis
	// points of taking_amount, locked alongside principal on its
	// escrow, spec §9 "Safety deposit semantics".
	SafetyDepositBps int64
}

// LoadConfig loads configuration from the environment, validating
// required fields and returning (*Config, error) exactly as the
// teacher's LoadConfig does.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:       getEnvOrDefault("PORT", ":8090"),
		HealthPort: getEnvOrDefault("HEALTH_PORT", "8091"),

		EthereumRPCEndpoint: getEnvOrDefault("ETHEREUM_RPC_ENDPOINT", ""),
		StellarRPCEndpoint:  getEnvOrDefault("STELLAR_RPC_ENDPOINT", ""),
		NetworkPassphrase:   getEnvOrDefault("NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),

		CacheTTLSeconds:                     getDurationSecondsEnv("CACHE_TTL_SECONDS", 30),
		BalanceUpdateIntervalSeconds:        getDurationSecondsEnv("BALANCE_UPDATE_INTERVAL_SECONDS", 15),
		ReservationTimeoutSeconds:           getDurationSecondsEnv("RESERVATION_TIMEOUT_SECONDS", 300),
		ReservationCleanupIntervalSeconds:   getDurationSecondsEnv("RESERVATION_CLEANUP_INTERVAL_SECONDS", 60),
		AuctionDefaultDurationSeconds:       getDurationSecondsEnv("AUCTION_DEFAULT_DURATION_SECONDS", 300),
		MaxSlippage:                         getFloatEnv("MAX_SLIPPAGE", 0.05),
		LowLiquidityThresholdFraction:       getFloatEnv("LOW_LIQUIDITY_THRESHOLD_FRACTION", 0.20),
		CriticalLiquidityThresholdFraction:  getFloatEnv("CRITICAL_LIQUIDITY_THRESHOLD_FRACTION", 0.05),
		RPCTimeoutSeconds:                   getDurationSecondsEnv("RPC_TIMEOUT_SECONDS", 30),
		MonitoringPollIntervalSeconds:       getDurationSecondsEnv("MONITORING_POLL_INTERVAL_SECONDS", 5),
		EscrowSafetyMarginSeconds:           getDurationSecondsEnv("ESCROW_SAFETY_MARGIN_SECONDS", 1800),
		SweepIntervalSeconds:                getDurationSecondsEnv("SWEEP_INTERVAL_SECONDS", 60),
		SafetyDepositBps:                    int64(getIntEnv("SAFETY_DEPOSIT_BPS", 100)),
	}

	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	// An explicitly set but empty NETWORK_PASSPHRASE is not replaced by
	// the default, so the required-field check below applies to it.
	if v, ok := os.LookupEnv("NETWORK_PASSPHRASE"); ok {
		cfg.NetworkPassphrase = v
	}

	if cfg.NetworkPassphrase == "" {
		return nil, fmt.Errorf("NETWORK_PASSPHRASE environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func getDurationSecondsEnv(key string, defaultSeconds int) time.Duration {
	seconds := getIntEnv(key, defaultSeconds)
	return time.Duration(seconds) * time.Second
}
