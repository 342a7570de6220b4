package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/coupon"
	"github.com/Ugender2729/F1-Mart-sub001/internal/delivery"
	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/Ugender2729/F1-Mart-sub001/internal/pricing"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`
	Pricing      PricingConfig      `mapstructure:"pricing"`
	Location     LocationConfig     `mapstructure:"location"`
	Verification VerificationConfig `mapstructure:"verification"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Postgres     PostgresConfig     `mapstructure:"postgres"`
	Mongo        MongoConfig        `mapstructure:"mongo"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Coupons      CouponsConfig      `mapstructure:"coupons"`

	settings map[string]any
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per customer
	RateBurst       int           `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// DeliveryConfig is the store's coverage record.
type DeliveryConfig struct {
	OriginLatitude        float64 `mapstructure:"origin_latitude"`
	OriginLongitude       float64 `mapstructure:"origin_longitude"`
	RadiusKm              float64 `mapstructure:"radius_km"`
	BaseFee               float64 `mapstructure:"base_fee"`
	FreeDeliveryThreshold float64 `mapstructure:"free_delivery_threshold"`
}

type PricingConfig struct {
	Precedence string `mapstructure:"precedence"`
}

type LocationConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type VerificationConfig struct {
	WindowSeconds int           `mapstructure:"window_seconds"`
	RecoveryTick  time.Duration `mapstructure:"recovery_tick"`
}

type StorageConfig struct {
	Backend            string        `mapstructure:"backend"`
	FlushInterval      time.Duration `mapstructure:"flush_interval"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
}

type PostgresConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"dbname"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type MongoConfig struct {
	URI                    string        `mapstructure:"uri"`
	Database               string        `mapstructure:"database"`
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout"`
	MaxPoolSize            uint64        `mapstructure:"max_pool_size"`
	MinPoolSize            uint64        `mapstructure:"min_pool_size"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// KafkaConfig enables the outbox publisher and the delivered consumer when brokers are set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type CouponsConfig struct {
	BaseURL          string         `mapstructure:"base_url"`
	CallTimeout      time.Duration  `mapstructure:"call_timeout"`
	FailureThreshold uint32         `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration  `mapstructure:"open_timeout"`
	FirstOrderCode   string         `mapstructure:"first_order_code"`
	Static           []StaticCoupon `mapstructure:"static"`
}

// StaticCoupon is a coupon served locally when no coupon service is configured.
type StaticCoupon struct {
	Code            string  `mapstructure:"code"`
	Kind            string  `mapstructure:"kind"`
	Value           float64 `mapstructure:"value"`
	MinimumAmount   float64 `mapstructure:"minimum_amount"`
	MaximumDiscount float64 `mapstructure:"maximum_discount"`
	FirstOrderOnly  bool    `mapstructure:"first_order_only"`
}

// Validate checks the values the services cannot recover from.
func (c *Config) Validate() error {
	var errs []error
	origin := domain.GeoPoint{Latitude: c.Delivery.OriginLatitude, Longitude: c.Delivery.OriginLongitude}
	if err := origin.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("delivery origin: %w", err))
	}
	if c.Delivery.RadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("delivery.radius_km must be positive, got %v", c.Delivery.RadiusKm))
	}
	if c.Delivery.BaseFee < 0 {
		errs = append(errs, fmt.Errorf("delivery.base_fee must not be negative"))
	}
	if !pricing.Precedence(c.Pricing.Precedence).Valid() {
		errs = append(errs, fmt.Errorf("unknown pricing.precedence %q", c.Pricing.Precedence))
	}
	if c.Verification.WindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("verification.window_seconds must be positive"))
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	for _, sc := range c.Coupons.Static {
		switch domain.CouponKind(strings.ToUpper(sc.Kind)) {
		case domain.CouponKindPercentage, domain.CouponKindFixed, domain.CouponKindFreeDelivery:
		default:
			errs = append(errs, fmt.Errorf("coupon %q: unknown kind %q", sc.Code, sc.Kind))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// DeliveryRecord converts the coverage settings into the quote configuration.
func (c *Config) DeliveryRecord() delivery.Config {
	return delivery.Config{
		Origin:                domain.GeoPoint{Latitude: c.Delivery.OriginLatitude, Longitude: c.Delivery.OriginLongitude},
		RadiusKm:              c.Delivery.RadiusKm,
		BaseFee:               decimal.NewFromFloat(c.Delivery.BaseFee),
		FreeDeliveryThreshold: decimal.NewFromFloat(c.Delivery.FreeDeliveryThreshold),
	}
}

func (c *Config) PricingEngine() *pricing.Engine {
	e := pricing.NewEngine(pricing.Precedence(c.Pricing.Precedence))
	e.FreeDeliveryThreshold = decimal.NewFromFloat(c.Delivery.FreeDeliveryThreshold)
	return e
}

func (c *Config) CouponClient() coupon.ClientConfig {
	return coupon.ClientConfig{
		BaseURL:          c.Coupons.BaseURL,
		CallTimeout:      c.Coupons.CallTimeout,
		FailureThreshold: c.Coupons.FailureThreshold,
		OpenTimeout:      c.Coupons.OpenTimeout,
	}
}

// StaticCoupons builds coupon snapshots valid from startTime with no expiry.
func (c *Config) StaticCoupons(startTime time.Time) []domain.Coupon {
	out := make([]domain.Coupon, 0, len(c.Coupons.Static))
	for _, sc := range c.Coupons.Static {
		cp := domain.Coupon{
			ID:             strings.ToLower(sc.Code),
			Code:           strings.ToUpper(sc.Code),
			Kind:           domain.CouponKind(strings.ToUpper(sc.Kind)),
			Value:          decimal.NewFromFloat(sc.Value),
			MinimumAmount:  decimal.NewFromFloat(sc.MinimumAmount),
			IsActive:       true,
			FirstOrderOnly: sc.FirstOrderOnly,
			ValidFrom:      startTime,
		}
		if sc.MaximumDiscount > 0 {
			m := decimal.NewFromFloat(sc.MaximumDiscount)
			cp.MaximumDiscount = &m
		}
		out = append(out, cp)
	}
	return out
}
