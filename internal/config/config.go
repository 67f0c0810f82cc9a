package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// DayTypeRule marks the dates matching an RRULE as holidays or special days
type DayTypeRule struct {
	RRule   string `yaml:"rrule" validate:"required"`
	DayType string `yaml:"dayType" validate:"required,oneof=weekday holiday special"`
}

// SolverConfig bounds the work a generation run may do. Zero values use the solver defaults.
type SolverConfig struct {
	BacktrackFactor   int           `yaml:"backtrackFactor" validate:"gte=0"`
	MaxBacktrackDepth int           `yaml:"maxBacktrackDepth" validate:"gte=0"`
	TimeBudget        time.Duration `yaml:"timeBudget" validate:"gte=0"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL         string        `yaml:"databaseURL" validate:"required_without=DataFile"`
	DataFile            string        `yaml:"dataFile,omitempty" validate:"required_without=DatabaseURL"`
	DefaultCrossDayRule string        `yaml:"defaultCrossDayRule,omitempty" validate:"omitempty,oneof=by_shift_start by_calendar_day"`
	Solver              SolverConfig  `yaml:"solver"`
	DayTypes            []DayTypeRule `yaml:"dayTypes,omitempty" validate:"dive"`
	HTTP                HTTPConfig    `yaml:"http"`
}

const defaultHTTPAddr = ":8080"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from roster_config.<env>.yaml.
// It looks for the config file in the current directory first, then in the user's home directory.
// A .env file in the current directory is loaded first if present.
func Load(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
// DATABASE_URL in the environment overrides databaseURL from the file.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = defaultHTTPAddr
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Validate rrule syntax for each day type rule
	for i, rule := range cfg.DayTypes {
		if _, err := rrule.StrToRRule(rule.RRule); err != nil {
			return fmt.Errorf("invalid rrule in dayTypes[%d]: %w", i, err)
		}
	}

	return nil
}

// findConfigFile searches for roster_config.<env>.yaml in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := fmt.Sprintf("roster_config.%s.yaml", env)

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", configFileName)
}
