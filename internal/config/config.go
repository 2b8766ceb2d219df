package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	// Balancing thresholds, customer book.
	CustomerMinARR    float64 `mapstructure:"CUSTOMER_MIN_ARR" validate:"gte=0"`
	CustomerTargetARR float64 `mapstructure:"CUSTOMER_TARGET_ARR" validate:"gt=0"`
	CustomerMaxARR    float64 `mapstructure:"CUSTOMER_MAX_ARR" validate:"gt=0"`

	// Balancing thresholds, prospect book.
	ProspectMinARR    float64 `mapstructure:"PROSPECT_MIN_ARR" validate:"gte=0"`
	ProspectTargetARR float64 `mapstructure:"PROSPECT_TARGET_ARR" validate:"gt=0"`
	ProspectMaxARR    float64 `mapstructure:"PROSPECT_MAX_ARR" validate:"gt=0"`

	MinAccountsPerRep     int  `mapstructure:"MIN_ACCOUNTS_PER_REP" validate:"gte=0"`
	MaxCREPerRep          int  `mapstructure:"MAX_CRE_PER_REP" validate:"gte=1"`
	ContinuityDays        int  `mapstructure:"CONTINUITY_DAYS" validate:"gte=0"`
	PreferGeographicMatch bool `mapstructure:"PREFER_GEOGRAPHIC_MATCH"`
	PreferContinuity      bool `mapstructure:"PREFER_CONTINUITY"`

	RenewalSpecialistRouting bool    `mapstructure:"RS_ROUTING"`
	RSMaxARR                 float64 `mapstructure:"RS_MAX_ARR" validate:"gte=0"`

	TerritoryMapPath string `mapstructure:"TERRITORY_MAP_PATH"`
	TerritoryAIURL   string `mapstructure:"TERRITORY_AI_URL"`

	SolverURL        string `mapstructure:"SOLVER_URL"`
	ArbiterURL       string `mapstructure:"ARBITER_URL"`
	ArbiterBatchSize int    `mapstructure:"ARBITER_BATCH_SIZE" validate:"gte=1"`

	ProcessCron string `mapstructure:"PROCESS_CRON"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)

	v.SetDefault("CUSTOMER_MIN_ARR", 1_000_000)
	v.SetDefault("CUSTOMER_TARGET_ARR", 1_500_000)
	v.SetDefault("CUSTOMER_MAX_ARR", 2_000_000)
	v.SetDefault("PROSPECT_MIN_ARR", 250_000)
	v.SetDefault("PROSPECT_TARGET_ARR", 500_000)
	v.SetDefault("PROSPECT_MAX_ARR", 750_000)
	v.SetDefault("MIN_ACCOUNTS_PER_REP", 0)
	v.SetDefault("MAX_CRE_PER_REP", 5)
	v.SetDefault("CONTINUITY_DAYS", 365)
	v.SetDefault("PREFER_GEOGRAPHIC_MATCH", true)
	v.SetDefault("PREFER_CONTINUITY", true)
	v.SetDefault("RS_ROUTING", false)
	v.SetDefault("RS_MAX_ARR", 100_000)
	v.SetDefault("ARBITER_BATCH_SIZE", 25)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := checkThresholds(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func checkThresholds(cfg Config) error {
	if cfg.CustomerMinARR > cfg.CustomerMaxARR {
		return fmt.Errorf("invalid configuration: CUSTOMER_MIN_ARR exceeds CUSTOMER_MAX_ARR")
	}
	if cfg.ProspectMinARR > cfg.ProspectMaxARR {
		return fmt.Errorf("invalid configuration: PROSPECT_MIN_ARR exceeds PROSPECT_MAX_ARR")
	}
	if cfg.CustomerTargetARR < cfg.CustomerMinARR || cfg.CustomerTargetARR > cfg.CustomerMaxARR {
		return fmt.Errorf("invalid configuration: CUSTOMER_TARGET_ARR outside [min, max]")
	}
	if cfg.ProspectTargetARR < cfg.ProspectMinARR || cfg.ProspectTargetARR > cfg.ProspectMaxARR {
		return fmt.Errorf("invalid configuration: PROSPECT_TARGET_ARR outside [min, max]")
	}
	return nil
}

// LoadTerritoryMap reads an optional territory→region JSON file. A missing
// path yields an empty map, not an error.
func LoadTerritoryMap(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("territory map: %w", err)
	}
	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("territory map: %w", err)
	}
	return out, nil
}
