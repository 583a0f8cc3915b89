package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	LogLevel       string        // debug | info | warn | error
	StoreDriver    string        // "mysql" or "memory"
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	DBTxRetries    int           // re-runs of a booking transaction after a deadlock / lock wait timeout
	JWTSecret      string        // secret used to sign JWTs
	AccessTTLMin   int           // access token time‑to‑live in minutes
	RefreshTTLDays int           // refresh token time‑to‑live in days
	BcryptCost     int           // bcrypt cost for password hashing
	BookingTimeout time.Duration // upper bound of one booking transaction
	GridRows       int           // seat rows of seeded showtimes
	GridCols       int           // seats per row of seeded showtimes
	SeedDemo       bool          // create the demo catalog on an empty store
	RabbitURL      string        // AMQP URL; empty disables booking events
	BookingLogPath string        // file the booking event consumer appends to
}

// Load reads an optional .env file, then builds the Config from the
// environment.  Missing or malformed required values are fatal.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg, err := FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// FromEnv builds a Config from the current environment.  All problems
// are collected into a single error.
func FromEnv() (Config, error) {
	r := &reader{}
	cfg := Config{
		Env:            r.must("APP_ENV"),
		Port:           r.must("APP_PORT"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", "mysql")),
		JWTSecret:      r.must("JWT_SECRET"),
		AccessTTLMin:   r.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: r.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     r.mustInt("BCRYPT_COST"),
		BookingTimeout: envDur("BOOKING_TIMEOUT", 5*time.Second),
		DBTxRetries:    envInt("DB_TX_RETRIES", 3),
		GridRows:       envInt("GRID_ROWS", 5),
		GridCols:       envInt("GRID_COLS", 8),
		SeedDemo:       envBool("SEED_DEMO", false),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		BookingLogPath: envStr("BOOKING_LOG_PATH", "logs/booking.log"),
	}
	switch cfg.StoreDriver {
	case "mysql":
		cfg.DBUser = r.must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = r.must("DB_HOST")
		cfg.DBPort = r.must("DB_PORT")
		cfg.DBName = r.must("DB_NAME")
	case "memory":
	default:
		r.problems = append(r.problems, fmt.Sprintf("invalid STORE_DRIVER %q (want mysql or memory)", cfg.StoreDriver))
	}
	if cfg.GridRows < 1 || cfg.GridCols < 1 {
		r.problems = append(r.problems, fmt.Sprintf("invalid grid %dx%d", cfg.GridRows, cfg.GridCols))
	}
	if err := utils.CheckBcryptCost(cfg.BcryptCost); err != nil {
		r.problems = append(r.problems, "invalid BCRYPT_COST: "+err.Error())
	}
	if cfg.DBTxRetries < 0 {
		cfg.DBTxRetries = 0
	}
	if len(r.problems) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(r.problems, "; "))
	}
	return cfg, nil
}

// reader collects missing/invalid required variables.
type reader struct{ problems []string }

// must retrieves the value of a required environment variable.
func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.problems = append(r.problems, "missing required env var: "+key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func (r *reader) mustInt(key string) int {
	s := r.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.problems = append(r.problems, fmt.Sprintf("invalid int for %s: %q", key, s))
	}
	return n
}
