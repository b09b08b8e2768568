// Package config loads run configuration from YAML, a .env file and
// RENTSIM_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/talgya/rent-market/internal/agents"
	"github.com/talgya/rent-market/internal/engine"
	"github.com/talgya/rent-market/internal/policy"
	"github.com/talgya/rent-market/internal/tuning"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete run configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Policy     PolicyConfig     `yaml:"policy"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig sizes the market and the horizon.
type SimulationConfig struct {
	Households     int      `yaml:"households"`
	Units          int      `yaml:"units"`
	Landlords      int      `yaml:"landlords"`
	Years          int      `yaml:"years"`
	MigrationRate  *float64 `yaml:"migration_rate"`
	CompliantShare *float64 `yaml:"compliant_share"`
	Seed           int64    `yaml:"seed"`    // 0 = random
	Catalog        string   `yaml:"catalog"` // Optional seed catalog path
	Runs           int      `yaml:"runs"`    // Runs per scenario when comparing
}

// PolicyConfig selects and parameterises the policy. Zero rates take the
// defaults of the chosen kind.
type PolicyConfig struct {
	Kind           string  `yaml:"kind"` // none | rent_cap | lvt
	RentCapRatio   float64 `yaml:"rent_cap_ratio"`
	MaxIncrease    float64 `yaml:"max_increase"`
	InspectionRate float64 `yaml:"inspection_rate"`
	LVTRate        float64 `yaml:"lvt_rate"`
}

// StorageConfig controls where run outputs are persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file, ":memory:", or empty to disable
}

// APIConfig controls the HTTP control surface.
type APIConfig struct {
	Port           int      `yaml:"port"`
	StepIntervalMS int      `yaml:"step_interval_ms"`
	AdminKey       string   `yaml:"admin_key"`
	Origins        []string `yaml:"origins"`
	WritesPerMin   float64  `yaml:"writes_per_minute"`
}

// LogConfig controls the format and level of logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file at path, if any, then the .env file, then
// RENTSIM_* overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides replaces values with RENTSIM_* variables when present.
func applyEnvOverrides(cfg *Config) error {
	ints := map[string]*int{
		"RENTSIM_HOUSEHOLDS": &cfg.Simulation.Households,
		"RENTSIM_UNITS":      &cfg.Simulation.Units,
		"RENTSIM_LANDLORDS":  &cfg.Simulation.Landlords,
		"RENTSIM_YEARS":      &cfg.Simulation.Years,
		"RENTSIM_RUNS":       &cfg.Simulation.Runs,
		"RENTSIM_PORT":       &cfg.API.Port,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("RENTSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RENTSIM_SEED: %w", err)
		}
		cfg.Simulation.Seed = n
	}
	if v := os.Getenv("RENTSIM_MIGRATION_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RENTSIM_MIGRATION_RATE: %w", err)
		}
		cfg.Simulation.MigrationRate = &f
	}

	strs := map[string]*string{
		"RENTSIM_CATALOG":    &cfg.Simulation.Catalog,
		"RENTSIM_POLICY":     &cfg.Policy.Kind,
		"RENTSIM_DB":         &cfg.Storage.DSN,
		"RENTSIM_ADMIN_KEY":  &cfg.API.AdminKey,
		"RENTSIM_LOG_LEVEL":  &cfg.Log.Level,
		"RENTSIM_LOG_FORMAT": &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("RENTSIM_CORS_ORIGINS"); v != "" {
		cfg.API.Origins = append(cfg.API.Origins, strings.Split(v, ",")...)
	}
	return nil
}

// setDefaults fills unset values with sensible ones.
func setDefaults(cfg *Config) {
	d := engine.DefaultParams()
	sim := &cfg.Simulation
	if sim.Households == 0 {
		sim.Households = d.Households
	}
	if sim.Units == 0 {
		sim.Units = d.Units
	}
	if sim.Landlords == 0 {
		sim.Landlords = d.Landlords
	}
	if sim.Years == 0 {
		sim.Years = d.Years
	}
	if sim.MigrationRate == nil {
		sim.MigrationRate = &d.MigrationRate
	}
	if sim.CompliantShare == nil {
		sim.CompliantShare = &d.CompliantShare
	}
	if sim.Runs <= 0 {
		sim.Runs = 3
	}

	p := &cfg.Policy
	if p.Kind == "" {
		p.Kind = "none"
	}
	kind, err := policy.ParseKind(p.Kind)
	if err == nil {
		var preset *policy.Policy
		switch kind {
		case policy.KindRentCap:
			preset = policy.RentCap()
		default:
			preset = policy.NoCap()
		}
		if p.RentCapRatio == 0 {
			p.RentCapRatio = preset.RentCapRatio
		}
		if p.MaxIncrease == 0 {
			p.MaxIncrease = preset.MaxIncrease
		}
		if p.InspectionRate == 0 {
			p.InspectionRate = preset.InspectionRate
		}
		if kind == policy.KindLandValueTax && p.LVTRate == 0 {
			p.LVTRate = tuning.DefaultLVTRate
		}
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.StepIntervalMS <= 0 {
		cfg.API.StepIntervalMS = 1000
	}
	if cfg.API.WritesPerMin <= 0 {
		cfg.API.WritesPerMin = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate rejects configurations that cannot start a run.
func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalid, c.API.Port)
	}
	return nil
}

// BuildPolicy builds the configured policy.
func (c *Config) BuildPolicy() (*policy.Policy, error) {
	kind, err := policy.ParseKind(c.Policy.Kind)
	if err != nil {
		return nil, err
	}
	return policy.New(kind, c.Policy.RentCapRatio, c.Policy.MaxIncrease, c.Policy.InspectionRate, c.Policy.LVTRate)
}

// Params converts the simulation section into engine parameters.
func (c *Config) Params() (engine.Params, error) {
	pol, err := c.BuildPolicy()
	if err != nil {
		return engine.Params{}, err
	}
	p := engine.Params{
		Households: c.Simulation.Households,
		Units:      c.Simulation.Units,
		Landlords:  c.Simulation.Landlords,
		Years:      c.Simulation.Years,
		Seed:       c.Simulation.Seed,
		Policy:     pol,
	}
	if c.Simulation.MigrationRate != nil {
		p.MigrationRate = *c.Simulation.MigrationRate
	}
	if c.Simulation.CompliantShare != nil {
		p.CompliantShare = *c.Simulation.CompliantShare
	}
	if err := p.Validate(); err != nil {
		return engine.Params{}, err
	}
	return p, nil
}

// StepInterval is the API driver's pace between periods.
func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.API.StepIntervalMS) * time.Millisecond
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log level %q", s)
}

// catalogFile is the on-disk seed catalog.
type catalogFile struct {
	Households []struct {
		Name   string  `yaml:"name"`
		Age    float64 `yaml:"age"`
		Size   int     `yaml:"size"`
		Income float64 `yaml:"income"`
		Wealth float64 `yaml:"wealth"`
	} `yaml:"households"`
	Units []struct {
		Name      string   `yaml:"name"`
		Quality   float64  `yaml:"quality"`
		BaseRent  float64  `yaml:"base_rent"`
		Size      int      `yaml:"size"`
		Location  float64  `yaml:"location"`
		Amenities []string `yaml:"amenities"`
	} `yaml:"units"`
}

// LoadCatalog reads a seed catalog of households and units.
func LoadCatalog(path string) (*engine.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.LoadCatalog: read %q: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config.LoadCatalog: parse YAML: %w", err)
	}

	cat := &engine.Catalog{}
	for i, h := range f.Households {
		if h.Size < 0 || h.Income < 0 || h.Wealth < 0 || h.Age < 0 {
			return nil, fmt.Errorf("%w: catalog household %d has negative fields", ErrInvalid, i+1)
		}
		cat.Households = append(cat.Households, agents.Template{
			Name:   h.Name,
			Age:    h.Age,
			Size:   h.Size,
			Income: h.Income,
			Wealth: h.Wealth,
		})
	}
	for i, u := range f.Units {
		if u.Quality < 0 || u.Quality > 1 || u.Location < 0 || u.Location > 1 {
			return nil, fmt.Errorf("%w: catalog unit %d quality and location must be within [0, 1]", ErrInvalid, i+1)
		}
		cat.Units = append(cat.Units, engine.UnitTemplate{
			Name:      u.Name,
			Quality:   u.Quality,
			BaseRent:  u.BaseRent,
			Size:      u.Size,
			Location:  u.Location,
			Amenities: u.Amenities,
		})
	}
	return cat, nil
}
