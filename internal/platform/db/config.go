package db

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWindowMins    = 10
	DefaultLateAfterMins = 5
	DefaultLowThreshold  = 75
	DefaultEvidenceBytes = 5 << 20
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// AttendanceConfig: 出席判定まわり。Timezone は講義開始時刻の解釈に使う唯一のローカル時計。
type AttendanceConfig struct {
	Timezone             string `yaml:"timezone"`
	DefaultWindowMins    int    `yaml:"default_window_mins"`
	DefaultLateAfterMins int    `yaml:"default_late_after_mins"`
	LowThreshold         int    `yaml:"low_threshold"`
}

type EvidenceConfig struct {
	Dir          string   `yaml:"dir"`
	MaxBytes     int64    `yaml:"max_bytes"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type BootstrapAdmin struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type Config struct {
	Version        string           `yaml:"version"`
	Mode           string           `yaml:"mode"`
	Server         ServerConfig     `yaml:"server"`
	DB             DatabaseConfig   `yaml:"database"`
	Certificate    Certs            `yaml:"certificate"`
	Auth           AuthConfig       `yaml:"auth"`
	Attendance     AttendanceConfig `yaml:"attendance"`
	Evidence       EvidenceConfig   `yaml:"evidence"`
	BootstrapAdmin BootstrapAdmin   `yaml:"bootstrap_admin"`
	// SeedDemo: dev モードのときだけ有効
	SeedDemo bool `yaml:"seed_demo"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(buf)
}

// ParseConfig: YAML → Config。.env と環境変数で上書きし、未設定値にデフォルトを入れる。
func ParseConfig(buf []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] .env not loaded: %v", err)
	}
	applyEnv(&cfg)
	cfg.applyDefaults()

	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid attendance.timezone %q: %w", cfg.Attendance.Timezone, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.DB.Port = p
		}
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SEED_DEMO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SeedDemo = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Attendance.Timezone == "" {
		c.Attendance.Timezone = "Local"
	}
	if c.Attendance.DefaultWindowMins <= 0 {
		c.Attendance.DefaultWindowMins = DefaultWindowMins
	}
	if c.Attendance.DefaultLateAfterMins <= 0 {
		c.Attendance.DefaultLateAfterMins = DefaultLateAfterMins
	}
	if c.Attendance.LowThreshold <= 0 || c.Attendance.LowThreshold > 100 {
		c.Attendance.LowThreshold = DefaultLowThreshold
	}
	if c.Evidence.Dir == "" {
		c.Evidence.Dir = "uploads"
	}
	if c.Evidence.MaxBytes <= 0 {
		c.Evidence.MaxBytes = DefaultEvidenceBytes
	}
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Attendance.Timezone)
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func (c *Config) UseTLS() bool {
	return c.Certificate.Cert != "" && c.Certificate.Key != ""
}
