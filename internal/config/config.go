package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Redis        RedisConfig        `yaml:"redis"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Quiz         QuizConfig         `yaml:"quiz"`
	Registration RegistrationConfig `yaml:"registration"`
	Sheets       SheetsConfig       `yaml:"sheets"`
	CORS         CORSConfig         `yaml:"cors"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	Mode         string `yaml:"mode"` // debug | release
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty disables the rotating file sink
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	TTL         string `yaml:"ttl"`
	ProgressTTL string `yaml:"progress_ttl"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type RabbitMQConfig struct {
	URL string `yaml:"url"`
}

type QuizConfig struct {
	TTL               string  `yaml:"ttl"` // question bank cache
	QuestionCount     int     `yaml:"question_count"`
	QuestionDuration  int     `yaml:"question_duration"` // seconds
	PassThreshold     float64 `yaml:"pass_threshold"`
	BlockAfterFailure bool    `yaml:"block_after_failure"`
	AutoStartTimer    bool    `yaml:"auto_start_timer"`
	Retention         string  `yaml:"retention"`
	IdleTimeout       string  `yaml:"idle_timeout"` // unfinished sessions without activity
}

type RegistrationConfig struct {
	RequirePass bool `yaml:"require_pass"`
}

type SheetsConfig struct {
	SpreadsheetID       string `yaml:"spreadsheet_id"`
	ClientID            string `yaml:"client_id"`
	ClientSecret        string `yaml:"client_secret"`
	RedirectURL         string `yaml:"redirect_url"`
	RefreshToken        string `yaml:"refresh_token"`
	ServiceAccountFile  string `yaml:"service_account_file"`
	ServiceAccountEmail string `yaml:"service_account_email"`
	PrivateKey          string `yaml:"private_key"`
}

// Enabled reports whether registrations should go to a spreadsheet.
func (s SheetsConfig) Enabled() bool {
	return s.SpreadsheetID != ""
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

// Default returns the built-in settings used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Mode = "release"
	cfg.Log.Level = "info"
	cfg.Quiz.QuestionCount = 10
	cfg.Quiz.QuestionDuration = 60
	cfg.Quiz.PassThreshold = 0.6
	cfg.Quiz.AutoStartTimer = true
	cfg.Sheets.RedirectURL = "http://localhost:8080/api/auth/callback/google"
	cfg.CORS.AllowOrigins = []string{"http://localhost:3000"}
	cfg.RateLimit.Requests = 10
	cfg.RateLimit.Window = "1m"
	return cfg
}

// Load reads YAML config from path on top of Default and applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&cfg.Sheets.SpreadsheetID, "GOOGLE_SPREADSHEET_ID")
	setString(&cfg.Sheets.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Sheets.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Sheets.RedirectURL, "GOOGLE_REDIRECT_URI")
	setString(&cfg.Sheets.RefreshToken, "GOOGLE_REFRESH_TOKEN")
	setString(&cfg.Sheets.ServiceAccountFile, "GOOGLE_SERVICE_ACCOUNT_FILE")
	setString(&cfg.Sheets.ServiceAccountEmail, "GOOGLE_SERVICE_ACCOUNT_EMAIL")
	setString(&cfg.Sheets.PrivateKey, "GOOGLE_PRIVATE_KEY")
	if v, err := strconv.ParseBool(os.Getenv("REQUIRE_PASS")); err == nil {
		cfg.Registration.RequirePass = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
