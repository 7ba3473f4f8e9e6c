package config

import (
	"time"

	"github.com/ardanlabs/conf/v3"
)

type Config struct {
	conf.Version
	Web      Web
	DB       DB
	Cors     Cors
	Pricing  Pricing
	Payment  Payment
	Checkout Checkout
	Stripe   Stripe
	Paypal   Paypal
	Redis    Redis
	Kafka    Kafka
	Rate     Rate
	Session  Session
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`

	// TrustedProxies lists the addresses or CIDRs allowed to set
	// X-Forwarded-For.
	TrustedProxies []string
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:cart"`
	MaxIdleConns int    `conf:"default:3"`
	MaxOpenConns int    `conf:"default:10"`
	DisableTLS   bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

// Pricing rates are decimal strings so they can be parsed without float drift.
type Pricing struct {
	TaxRate      string `conf:"default:0.23"`
	DiscountRate string `conf:"default:0.138"`
	TaxInTotal   bool   `conf:"default:false"`
	Currency     string `conf:"default:USD"`
}

type Payment struct {
	Processors []string `conf:"default:stripe;paypal"`
}

type Checkout struct {
	MaxPricing int `conf:"default:8"`
}

type Stripe struct {
	APISecret string `conf:"mask"`
	URL       string
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}

type Redis struct {
	Addr     string
	Password string        `conf:"mask"`
	TTL      time.Duration `conf:"default:15m"`
}

type Kafka struct {
	Brokers []string
	Topic   string `conf:"default:cart-events"`
}

type Rate struct {
	Burst  int     `conf:"default:20"`
	Expiry int     `conf:"default:5"`
	RPS    float64 `conf:"default:10"`
}

type Session struct {
	Lifetime time.Duration `conf:"default:720h"`
	Secure   bool          `conf:"default:false"`
}
