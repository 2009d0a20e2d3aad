package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/risk"
)

// Config holds environment-driven settings for the execution core.
type Config struct {
	Port string

	// Venue
	BinanceTestnet   bool
	BinanceAPIKey    string
	BinanceAPISecret string
	Symbols          []string
	UseMockFeed      bool

	// Risk limits
	InitialBalanceUsd float64
	RiskPerTradeUsd   float64
	MaxAllowedRiskUsd float64
	MaxPositions      int
	LotStep           float64
	MinQty            float64

	// Execution
	MaxOrdersPerMin  int
	FillTimeoutMs    int
	SlippageBuffer   float64 // decimal, e.g. 0.0005
	FeeRate          float64 // decimal, e.g. 0.0004
	ReprotectOnTrail bool

	// Scanning
	ScanIntervalMs    int
	TrailingOffsetPct float64
	ProfilesPath      string

	// Database
	DBPath string

	// Observability API
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	base := risk.DefaultLimits()
	riskPerTrade := getEnvFloat("RISK_PER_TRADE_USD", base.RiskPerTradeUsd)

	return &Config{
		Port: getEnv("PORT", "8080"),

		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",
		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret: getEnv("BINANCE_API_SECRET", ""),
		Symbols:          splitAndTrim(getEnv("SYMBOLS", "BTCUSDT")),
		UseMockFeed:      getEnv("USE_MOCK_FEED", "true") == "true",

		InitialBalanceUsd: getEnvFloat("INITIAL_BALANCE_USD", 1000),
		RiskPerTradeUsd:   riskPerTrade,
		MaxAllowedRiskUsd: getEnvFloat("MAX_ALLOWED_RISK_USD", 2*riskPerTrade),
		MaxPositions:      getEnvInt("MAX_POSITIONS", base.MaxPositions),
		LotStep:           getEnvFloat("LOT_STEP", base.LotStep),
		MinQty:            getEnvFloat("MIN_QTY", base.MinQty),

		MaxOrdersPerMin:  getEnvInt("MAX_ORDERS_PER_MIN", 60),
		FillTimeoutMs:    getEnvInt("FILL_TIMEOUT_MS", 30000),
		SlippageBuffer:   getEnvFloat("SLIPPAGE_BUFFER", 0.0005),
		FeeRate:          getEnvFloat("FEE_RATE", 0.0004),
		ReprotectOnTrail: getEnv("REPROTECT_ON_TRAIL", "true") == "true",

		ScanIntervalMs:    getEnvInt("SCAN_INTERVAL_MS", 2000),
		TrailingOffsetPct: getEnvFloat("TRAILING_OFFSET_PCT", 0.01),
		ProfilesPath:      getEnv("PROFILES_PATH", "./profiles.yaml"),

		DBPath: getEnv("DB_PATH", "./data/core.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}
