package config

import (
	"time"

	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                 string
	MongoURI            string
	RedisAddr           string
	RabbitURL           string
	StripeSecretKey     string
	StripeWebhookSecret string
	JWTSecret           string
	JWTExpiresIn        time.Duration
	JWTCookieExpiresIn  time.Duration
	BaseURL             string
	OTLPEndpoint        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtExpires, _ := time.ParseDuration(os.Getenv("JWT_EXPIRES_IN"))
	if jwtExpires == 0 {
		jwtExpires = 90 * 24 * time.Hour
	}
	cookieExpires, _ := time.ParseDuration(os.Getenv("JWT_COOKIE_EXPIRES_IN"))
	if cookieExpires == 0 {
		cookieExpires = jwtExpires
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Config{
		Env:                 env,
		MongoURI:            os.Getenv("MONGO_URI"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTExpiresIn:        jwtExpires,
		JWTCookieExpiresIn:  cookieExpires,
		BaseURL:             baseURL,
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func (c *Config) Production() bool {
	return c.Env == "production"
}
