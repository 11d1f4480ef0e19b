package config

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Config holds all grove configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Tree     TreeConfig     `mapstructure:"tree" toml:"tree"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind" toml:"bind"`
	Port int    `mapstructure:"port" toml:"port"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver" toml:"driver"` // "sqlite" or "postgres"
	Path        string `mapstructure:"path" toml:"path"`     // sqlite file
	URL         string `mapstructure:"url" toml:"url"`       // postgres connection string
	TablePrefix string `mapstructure:"table_prefix" toml:"table_prefix"`
}

// TreeConfig names the tree and the fixed nodes the archive workflow works on.
type TreeConfig struct {
	ID                int64  `mapstructure:"id" toml:"id"`
	MainCategoryID    int64  `mapstructure:"main_category_id" toml:"main_category_id"`
	ArchiveCategoryID int64  `mapstructure:"archive_category_id" toml:"archive_category_id"`
	CourseType        string `mapstructure:"course_type" toml:"course_type"`
	CategoryType      string `mapstructure:"category_type" toml:"category_type"`
	BookkeepingType   string `mapstructure:"bookkeeping_type" toml:"bookkeeping_type"`
	KeepYears         int    `mapstructure:"keep_years" toml:"keep_years"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" toml:"format"` // text or json
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "", // resolved at runtime via store.DefaultDBPath()
		},
		Tree: TreeConfig{
			ID:              1,
			CourseType:      "crs",
			CategoryType:    "cat",
			BookkeepingType: "rolf",
			KeepYears:       2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path, if given, on top of Default, then
// applies GROVE_ environment overrides (GROVE_TREE_ID, GROVE_DATABASE_URL, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("GROVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that no
// config file mentions.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.table_prefix", d.Database.TablePrefix)
	v.SetDefault("tree.id", d.Tree.ID)
	v.SetDefault("tree.main_category_id", d.Tree.MainCategoryID)
	v.SetDefault("tree.archive_category_id", d.Tree.ArchiveCategoryID)
	v.SetDefault("tree.course_type", d.Tree.CourseType)
	v.SetDefault("tree.category_type", d.Tree.CategoryType)
	v.SetDefault("tree.bookkeeping_type", d.Tree.BookkeepingType)
	v.SetDefault("tree.keep_years", d.Tree.KeepYears)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks each section.
func (c *Config) Validate() error {
	return validation.Errors{
		"server":   c.Server.Validate(),
		"database": c.Database.Validate(),
		"tree":     c.Tree.Validate(),
		"log":      c.Log.Validate(),
	}.Filter()
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Bind, validation.Required),
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&d.URL, validation.When(d.Driver == DriverPostgres, validation.Required)),
	)
}

func (t TreeConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required, validation.Min(int64(1))),
		validation.Field(&t.MainCategoryID, validation.Min(int64(0))),
		validation.Field(&t.ArchiveCategoryID, validation.Min(int64(0))),
		validation.Field(&t.CourseType, validation.Required),
		validation.Field(&t.CategoryType, validation.Required),
		validation.Field(&t.BookkeepingType, validation.Required),
		validation.Field(&t.KeepYears, validation.Min(0)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.Required, validation.In("text", "json")),
	)
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
