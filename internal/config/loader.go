package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rpattn/chargemap/internal/db"
	"github.com/spf13/viper"
)

// ConfigDirEnv names the directory holding config.yaml.
const ConfigDirEnv = "CHARGEMAP_CONFIG_DIR"

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type DatasetConfig struct {
	Path      string
	Delimiter rune
	Watch     bool
}

type UIConfig struct {
	Title       string
	PageTitle   string
	BannerImage string
	TableLimit  int
}

type MapConfig struct {
	Zoom float64
}

type SessionConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig
	CORS     CORSConfig
	Dataset  DatasetConfig
	UI       UIConfig
	Map      MapConfig
	Session  SessionConfig
	Database db.Config
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Dataset: DatasetConfig{
			Path:      "red_recarga_acceso_publico_2024.csv",
			Delimiter: ';',
			Watch:     true,
		},
		UI: UIConfig{
			Title:       "Red de Cargadores Madrid 2024",
			PageTitle:   "Mi App - Proyecto Streamlit",
			BannerImage: "madrid_skyline.jpg",
			TableLimit:  1000,
		},
		Map: MapConfig{
			Zoom: 10,
		},
		Session: SessionConfig{
			TTL:        time.Hour,
			MaxEntries: 256,
		},
		Database: db.DefaultConfig(),
	}
}

// Dir returns the config directory from the environment, "." when unset.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(ConfigDirEnv)); dir != "" {
		return dir
	}
	return "."
}

// Load reads config.yaml from configPath when present and applies
// CHARGEMAP_* environment overrides on top of the defaults.
func Load(configPath string) (Config, error) {
	// Start with default
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("CHARGEMAP") // CHARGEMAP_SERVER_ADDR, CHARGEMAP_DATASET_PATH, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.read_timeout") {
		cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	}
	if v.IsSet("server.write_timeout") {
		cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	}
	if v.IsSet("server.idle_timeout") {
		cfg.Server.IdleTimeout = v.GetDuration("server.idle_timeout")
	}
	if v.IsSet("cors.allowed_origins") {
		cfg.CORS.AllowedOrigins = v.GetStringSlice("cors.allowed_origins")
	}
	if v.IsSet("dataset.path") {
		cfg.Dataset.Path = v.GetString("dataset.path")
	}
	if v.IsSet("dataset.delimiter") {
		delimiter, err := parseDelimiter(v.GetString("dataset.delimiter"))
		if err != nil {
			return cfg, err
		}
		cfg.Dataset.Delimiter = delimiter
	}
	if v.IsSet("dataset.watch") {
		cfg.Dataset.Watch = v.GetBool("dataset.watch")
	}
	if v.IsSet("ui.title") {
		cfg.UI.Title = v.GetString("ui.title")
	}
	if v.IsSet("ui.page_title") {
		cfg.UI.PageTitle = v.GetString("ui.page_title")
	}
	if v.IsSet("ui.banner_image") {
		cfg.UI.BannerImage = v.GetString("ui.banner_image")
	}
	if v.IsSet("ui.table_limit") {
		cfg.UI.TableLimit = v.GetInt("ui.table_limit")
	}
	if v.IsSet("map.zoom") {
		cfg.Map.Zoom = v.GetFloat64("map.zoom")
	}
	if v.IsSet("session.ttl") {
		cfg.Session.TTL = v.GetDuration("session.ttl")
	}
	if v.IsSet("session.max_entries") {
		cfg.Session.MaxEntries = v.GetInt("session.max_entries")
	}
	if v.IsSet("database.enabled") {
		cfg.Database.Enabled = v.GetBool("database.enabled")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}

var keys = []string{
	"server.addr",
	"server.read_timeout",
	"server.write_timeout",
	"server.idle_timeout",
	"cors.allowed_origins",
	"dataset.path",
	"dataset.delimiter",
	"dataset.watch",
	"ui.title",
	"ui.page_title",
	"ui.banner_image",
	"ui.table_limit",
	"map.zoom",
	"session.ttl",
	"session.max_entries",
	"database.enabled",
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.dbname",
	"database.sslmode",
}

func parseDelimiter(raw string) (rune, error) {
	if raw == `\t` || raw == "tab" {
		return '\t', nil
	}
	if utf8.RuneCountInString(raw) != 1 {
		return 0, fmt.Errorf("dataset.delimiter must be a single character, got %q", raw)
	}
	r, _ := utf8.DecodeRuneInString(raw)
	return r, nil
}
