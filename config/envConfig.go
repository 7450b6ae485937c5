package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var _ = godotenv.Load("dev.env")

// db variables
var (
	DB_USER     = os.Getenv("DB_USER")
	DB_PASSWORD = os.Getenv("DB_PASSWORD")
	DB_HOST     = os.Getenv("DB_HOST")
	DB_NAME     = os.Getenv("DB_NAME")
)

// stellar endpoints
var (
	HORIZON_URL = getEnv("HORIZON_URL", "https://horizon-testnet.stellar.org")
	RPC_URL     = getEnv("RPC_URL", "https://soroban-testnet.stellar.org")
	NETWORK     = getEnv("NETWORK", "testnet")
)

// platform endpoints
var (
	ESCROW_API_URL       = os.Getenv("ESCROW_API_URL")
	CONTRACT_BALANCE_URL = os.Getenv("CONTRACT_BALANCE_URL")
	// "http" reads contract balances from CONTRACT_BALANCE_URL, "rpc" simulates balance() on RPC_URL
	CONTRACT_BALANCE_MODE = getEnv("CONTRACT_BALANCE_MODE", "http")
)

// assets
var (
	USDC_ISSUER        = os.Getenv("USDC_ISSUER")
	ARENAX_ISSUER      = os.Getenv("ARENAX_ISSUER")
	ARENAX_CONTRACT_ID = os.Getenv("ARENAX_CONTRACT_ID")
	ARENAX_SOURCE      = getEnv("ARENAX_SOURCE", "classic")
)

// explorer
var (
	EXPLORER_CLASSIC_URL  = os.Getenv("EXPLORER_CLASSIC_URL")
	EXPLORER_CONTRACT_URL = os.Getenv("EXPLORER_CONTRACT_URL")
)

// timeouts
var (
	CONFIRM_TIMEOUT          = getEnv("CONFIRM_TIMEOUT", "60s")
	CONFIRM_INITIAL_INTERVAL = getEnv("CONFIRM_INITIAL_INTERVAL", "1s")
	CONFIRM_MAX_INTERVAL     = getEnv("CONFIRM_MAX_INTERVAL", "8s")
	BALANCE_TIMEOUT          = getEnv("BALANCE_TIMEOUT", "15s")
)

// service
var (
	HTTP_ADDR              = getEnv("HTTP_ADDR", ":8080")
	STORAGE_BACKEND        = getEnv("STORAGE_BACKEND", "file")
	STORAGE_DIR            = getEnv("STORAGE_DIR", ".wallet-data")
	DEPLOYMENT_ENVIRONMENT = os.Getenv("DEPLOYMENT_ENVIRONMENT")
	// "true" only when a trusted reverse proxy sets X-Forwarded-For
	TRUST_PROXY = getEnv("TRUST_PROXY", "false")
)

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
