package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	SessionTTL    time.Duration
	AutoApprove   bool
	AMQPURL       string
	AMQPExchange  string
	AdminEmail    string
	AdminPassword string
}

// SeedAdmin reports whether an initial administrator account should be
// created on startup.
func (c Config) SeedAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// value formats and reporting localized error messages for bad entries. The
// AMQP broker is optional: when BOOKING_AMQP_URL is empty, event publishing
// stays in-process only.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:     8080,
		SQLiteDSN:    "file:booking.db",
		SessionTTL:   24 * time.Hour,
		AutoApprove:  true,
		AMQPExchange: "booking.events",
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("BOOKING_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("BOOKING_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("BOOKING_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BOOKING_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if approveValue := strings.TrimSpace(os.Getenv("BOOKING_AUTO_APPROVE")); approveValue != "" {
		approve, err := strconv.ParseBool(approveValue)
		if err != nil {
			invalid = append(invalid, "BOOKING_AUTO_APPROVE")
		} else {
			cfg.AutoApprove = approve
		}
	}

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("BOOKING_AMQP_URL"))
	if exchange := strings.TrimSpace(os.Getenv("BOOKING_AMQP_EXCHANGE")); exchange != "" {
		cfg.AMQPExchange = exchange
	}

	cfg.AdminEmail = strings.TrimSpace(strings.ToLower(os.Getenv("BOOKING_ADMIN_EMAIL")))
	cfg.AdminPassword = os.Getenv("BOOKING_ADMIN_PASSWORD")
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		invalid = append(invalid, "BOOKING_ADMIN_EMAIL/BOOKING_ADMIN_PASSWORD")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
