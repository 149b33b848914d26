// Package config loads the daemon configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/schoollib/loanengine/lending"
)

const (
	defaultPort       = "8080"
	defaultLoansTable = "loans"
)

// Config carries everything cmd/loand needs to wire the daemon.
type Config struct {
	Port        string
	PostgresDSN string
	LoansTable  string
	Policy      lending.Policy
}

// Load reads the configuration. A missing .env file is not an error; the
// process environment always wins. An empty POSTGRES_DSN selects the
// in-memory engine.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	policy := lending.DefaultPolicy()

	var err error

	if policy.LoanDurationDays, err = intEnv("LOAN_DURATION_DAYS", policy.LoanDurationDays); err != nil {
		return Config{}, err
	}

	if policy.MaxRenewals, err = intEnv("MAX_RENEWALS", policy.MaxRenewals); err != nil {
		return Config{}, err
	}

	if policy.RenewalExtensionDays, err = intEnv("RENEWAL_EXTENSION_DAYS", policy.RenewalExtensionDays); err != nil {
		return Config{}, err
	}

	if policy.MaxLoansPerPerson, err = intEnv("MAX_LOANS_PER_PERSON", policy.MaxLoansPerPerson); err != nil {
		return Config{}, err
	}

	if policy.BlockWhenOverdue, err = boolEnv("BLOCK_WHEN_OVERDUE", policy.BlockWhenOverdue); err != nil {
		return Config{}, err
	}

	if policy.RenewalsEnabled, err = boolEnv("RENEWALS_ENABLED", policy.RenewalsEnabled); err != nil {
		return Config{}, err
	}

	if err = policy.Validate(); err != nil {
		return Config{}, err
	}

	return Config{
		Port:        stringEnv("PORT", defaultPort),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		LoansTable:  stringEnv("LOANS_TABLE", defaultLoansTable),
		Policy:      policy,
	}, nil
}

func stringEnv(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return value, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return value, nil
}
