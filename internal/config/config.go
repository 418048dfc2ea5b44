package config

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	RunAddress           string
	DatabaseURI          string
	TicketingDatabaseURI string
	JWTSecret            string

	OperatorUser         string
	OperatorPasswordHash string

	TrackerFile      string
	TrackerRetention time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	AutomationEnabled     bool
	AutomationInterval    time.Duration
	AutomationDisableSold bool

	BackMarket BackMarketConfig
	Refurbed   RefurbedConfig
	Octopia    OctopiaConfig
	Magento    MagentoConfig
	InvoiceX   InvoiceXConfig
	Telegram   TelegramConfig
	Sender     SenderConfig

	MarketplaceRPS float64
	HTTPTimeout    time.Duration

	LogLevel  string
	LogFormat string
}

type BackMarketConfig struct {
	BaseURL string
	Token   string
}

type RefurbedConfig struct {
	BaseURL string
	Token   string
}

type OctopiaConfig struct {
	ClientID     string
	ClientSecret string
	SellerID     string
	AuthURL      string
	BaseURL      string
}

type MagentoConfig struct {
	BaseURL    string
	Token      string
	StoreViews []string
}

type InvoiceXConfig struct {
	BaseURL string
	APIKey  string
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
}

type SenderConfig struct {
	Name    string
	Company string
	Address string
	Zip     string
	City    string
	Country string
	Phone   string
	Email   string
}

// DefaultMagentoStoreViews are disabled after the default scope.
var DefaultMagentoStoreViews = []string{"all", "it", "en", "de"}

func (c BackMarketConfig) Configured() bool {
	return c.Token != ""
}

func (c RefurbedConfig) Configured() bool {
	return c.Token != ""
}

func (c OctopiaConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.SellerID != ""
}

func (c MagentoConfig) Configured() bool {
	return c.BaseURL != "" && c.Token != ""
}

func New() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "server address and port")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "shipment journal database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "jwt signing key")
	flag.StringVar(&cfg.TrackerFile, "t", "/tmp/processed_orders.json", "processed orders file")
	flag.DurationVar(&cfg.AutomationInterval, "i", 10*time.Minute, "automation interval")
	flag.Parse()

	cfg.RunAddress = getEnv("RUN_ADDRESS", cfg.RunAddress)
	cfg.DatabaseURI = getEnv("DATABASE_URI", cfg.DatabaseURI)
	cfg.TicketingDatabaseURI = getEnv("TICKETING_DATABASE_URI", "")
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)

	cfg.OperatorUser = getEnv("OPERATOR_USER", "admin")
	cfg.OperatorPasswordHash = getEnv("OPERATOR_PASSWORD_HASH", "")

	cfg.TrackerFile = getEnv("TRACKER_FILE", cfg.TrackerFile)
	cfg.TrackerRetention = getDuration("TRACKER_RETENTION", 7*24*time.Hour)
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)

	cfg.AutomationEnabled = getBool("AUTOMATION_ENABLED", true)
	cfg.AutomationInterval = getDuration("AUTOMATION_INTERVAL", cfg.AutomationInterval)
	cfg.AutomationDisableSold = getBool("AUTOMATION_DISABLE_SOLD", false)

	cfg.BackMarket = BackMarketConfig{
		BaseURL: getEnv("BACKMARKET_BASE_URL", "https://www.backmarket.fr"),
		Token:   getEnv("BACKMARKET_TOKEN", ""),
	}
	cfg.Refurbed = RefurbedConfig{
		BaseURL: getEnv("REFURBED_BASE_URL", "https://api.refurbed.com"),
		Token:   getEnv("REFURBED_TOKEN", ""),
	}
	cfg.Octopia = OctopiaConfig{
		ClientID:     getEnv("OCTOPIA_CLIENT_ID", ""),
		ClientSecret: getEnv("OCTOPIA_CLIENT_SECRET", ""),
		SellerID:     getEnv("OCTOPIA_SELLER_ID", ""),
		AuthURL:      getEnv("OCTOPIA_AUTH_URL", "https://auth.octopia-io.net/auth/realms/maas/protocol/openid-connect/token"),
		BaseURL:      getEnv("OCTOPIA_BASE_URL", "https://api.octopia-io.net/seller/v2"),
	}
	cfg.Magento = MagentoConfig{
		BaseURL:    getEnv("MAGENTO_URL", ""),
		Token:      getEnv("MAGENTO_TOKEN", ""),
		StoreViews: getList("MAGENTO_STORE_VIEWS", DefaultMagentoStoreViews),
	}
	cfg.InvoiceX = InvoiceXConfig{
		BaseURL: getEnv("INVOICEX_API_URL", ""),
		APIKey:  getEnv("INVOICEX_API_KEY", ""),
	}
	cfg.Telegram = TelegramConfig{
		BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
	cfg.Sender = SenderConfig{
		Name:    getEnv("SENDER_NAME", ""),
		Company: getEnv("SENDER_COMPANY", ""),
		Address: getEnv("SENDER_ADDRESS", ""),
		Zip:     getEnv("SENDER_ZIP", ""),
		City:    getEnv("SENDER_CITY", ""),
		Country: getEnv("SENDER_COUNTRY", "IT"),
		Phone:   getEnv("SENDER_PHONE", ""),
		Email:   getEnv("SENDER_EMAIL", ""),
	}

	cfg.MarketplaceRPS = getFloat("MARKETPLACE_RPS", 5)
	cfg.HTTPTimeout = getDuration("HTTP_TIMEOUT", 30*time.Second)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "text")

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean setting, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer setting, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number setting, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

// getDuration accepts Go durations and a plain number of days ("7d").
func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if days, found := strings.CutSuffix(v, "d"); found {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration setting, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
