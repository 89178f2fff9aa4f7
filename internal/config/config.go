package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database  Database  `envPrefix:"DB_"`
	Payment   Payment   `envPrefix:"PAYMENT_"`
	Pricing   Pricing   `envPrefix:"PRICING_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Auth      Auth      `envPrefix:"ADMIN_"`
	Telemetry Telemetry `envPrefix:"OTEL_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"` // sqlite, mysql, postgres
	DSN             string        `env:"DSN" envDefault:"file:checkout.db?_busy_timeout=5000"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

type Payment struct {
	BaseApiURL       string        `env:"API_BASE_URL" envDefault:"https://api.stripe.com"`
	SecretKey        string        `env:"SECRET_KEY"`
	WebhookSecret    string        `env:"WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
	Currency         string        `env:"CURRENCY" envDefault:"usd"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"10s"`
	BreakerFailures  uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`
	SuccessURL       string        `env:"SUCCESS_URL"`
	CancelURL        string        `env:"CANCEL_URL"`
}

type Pricing struct {
	TablePath string `env:"TABLE_PATH"`
}

type Redis struct {
	Addr        string        `env:"ADDR"` // empty disables checkout-session resume
	Password    string        `env:"PASSWORD"`
	DB          int           `env:"DB" envDefault:"0"`
	CheckoutTTL time.Duration `env:"CHECKOUT_TTL" envDefault:"30m"`
}

type Kafka struct {
	Brokers           []string `env:"BROKERS" envSeparator:","` // empty logs notifications instead
	NotificationTopic string   `env:"NOTIFICATION_TOPIC" envDefault:"order-notifications"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Telemetry struct {
	Exporter    string `env:"TRACES_EXPORTER" envDefault:"none"` // none, stdout, otlp
	ServiceName string `env:"SERVICE_NAME" envDefault:"checkout-reconciler"`
}
