package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string
	LogFile  string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	JWTSecret   []byte
	TokenTTL    time.Duration
	AdminEmails []string

	StripeSecretKey string
	Currency        string
	GatewayTimeout  time.Duration
	CheckoutLockTTL time.Duration

	CloudinaryURL string
	UploadDir     string
	ReceiptSecret []byte
	CORSOrigins   []string
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

func getlist(k, def string) []string {
	var out []string
	for _, p := range strings.Split(getenv(k, def), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	port := getenv("PORT", ":8080")
	if port[0] != ':' {
		port = ":" + port
	}

	cfg := Config{
		Port:            port,
		Env:             getenv("APP_ENV", "development"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
		MongoURI:        getenv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDB:         getenv("MONGO_DB", "agromart"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       []byte(os.Getenv("JWT_SECRET")),
		TokenTTL:        getduration("TOKEN_TTL", 12*time.Hour),
		AdminEmails:     getlist("ADMIN_EMAILS", ""),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		Currency:        strings.ToLower(getenv("CURRENCY", "usd")),
		GatewayTimeout:  getduration("GATEWAY_TIMEOUT", 10*time.Second),
		CheckoutLockTTL: getduration("CHECKOUT_LOCK_TTL", 30*time.Second),
		CloudinaryURL:   os.Getenv("CLOUDINARY_URL"),
		UploadDir:       getenv("UPLOAD_DIR", "static/uploads"),
		ReceiptSecret:   []byte(os.Getenv("RECEIPT_SECRET")),
		CORSOrigins:     getlist("CORS_ORIGINS", "*"),
	}

	if len(cfg.JWTSecret) == 0 {
		if cfg.Env != "development" {
			return cfg, errors.New("JWT_SECRET is required")
		}
		cfg.JWTSecret = []byte("dev-only-secret")
	}
	if len(cfg.ReceiptSecret) == 0 {
		cfg.ReceiptSecret = cfg.JWTSecret
	}
	// The lock must outlive the slowest checkout, gateway call included.
	if cfg.CheckoutLockTTL <= cfg.GatewayTimeout {
		cfg.CheckoutLockTTL = cfg.GatewayTimeout + 10*time.Second
	}

	log.Printf("[config] env=%s port=%s mongo_db=%s redis=%s card_payments=%t",
		cfg.Env, cfg.Port, cfg.MongoDB, cfg.RedisAddr, cfg.StripeSecretKey != "")
	return cfg, nil
}

func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}
