package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	MFAModeTOTP   = "totp"
	MFAModeStatic = "static"

	minBcryptCost = 4
	maxBcryptCost = 31
)

type Config struct {
	Env        string
	ServerPort int
	LogLevel   string
	JWTSecret  string
	Store      StoreConfig
	Database   DatabaseConfig
	MFA        MFAConfig
	Password   PasswordConfig
	CORS       CORSConfig
}

type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type MFAConfig struct {
	Mode                string
	Issuer              string
	Skew                int
	RequirePendingToken bool
}

type PasswordConfig struct {
	Cost          int
	MaxConcurrent int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "carenet"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "carenet_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	return Config{
		Env:        getEnv("ENV", "production"),
		ServerPort: getEnvInt("SERVER_PORT", 5000),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		JWTSecret:  strings.TrimSpace(getEnv("JWT_SECRET", "")),
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", StoreMemory),
		},
		Database: dbConfig,
		MFA: MFAConfig{
			Mode:                getEnv("MFA_MODE", MFAModeTOTP),
			Issuer:              getEnv("MFA_ISSUER", "CareNet"),
			Skew:                getEnvInt("MFA_SKEW", 1),
			RequirePendingToken: getEnvBool("MFA_REQUIRE_PENDING_TOKEN", true),
		},
		Password: PasswordConfig{
			Cost:          getEnvInt("BCRYPT_COST", 10),
			MaxConcurrent: getEnvInt("PASSWORD_MAX_CONCURRENT", runtime.NumCPU()),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}
}

// Validate reports the first setting that would make the server unsafe or
// unable to start. A missing JWT secret is always fatal.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.MFA.Mode {
	case MFAModeTOTP, MFAModeStatic:
	default:
		return fmt.Errorf("unknown MFA_MODE %q", c.MFA.Mode)
	}
	if c.MFA.Skew < 0 {
		return errors.New("MFA_SKEW must not be negative")
	}
	if c.Password.Cost < minBcryptCost || c.Password.Cost > maxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", minBcryptCost, maxBcryptCost)
	}
	if c.Password.MaxConcurrent < 1 {
		return errors.New("PASSWORD_MAX_CONCURRENT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			values = append(values, v)
		}
	}
	return values
}
