package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	EnableLatency bool `mapstructure:"enable_latency"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Store     StoreConfig     `mapstructure:"store"`
	Shield    ShieldConfig    `mapstructure:"shield"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	GeoIP     GeoIPConfig     `mapstructure:"geoip"`
}

type ServerConfig struct {
	AdminPort   int    `mapstructure:"admin_port"`
	ProxyPort   int    `mapstructure:"proxy_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	Type        string `mapstructure:"type"`
	Upstream    string `mapstructure:"upstream"`
	SecretKey   string `mapstructure:"secret_key"`
	DocsFile    string `mapstructure:"docs_file"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects the backend for the ephemeral security state.
type StoreConfig struct {
	Backend       string        `mapstructure:"backend"` // redis | memory
	Capacity      int           `mapstructure:"capacity"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Disabled         bool          `mapstructure:"disabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type ShieldConfig struct {
	Profile       string        `mapstructure:"profile"`
	AdminPrefix   string        `mapstructure:"admin_prefix"`
	ContactPaths  []string      `mapstructure:"contact_paths"`
	Whitelist     []string      `mapstructure:"whitelist"`
	StaffSecret   string        `mapstructure:"staff_secret"`
	LocalCacheTTL time.Duration `mapstructure:"local_cache_ttl"`
	AlertsPerSec  float64       `mapstructure:"alerts_per_second"`

	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Burst      BurstConfig      `mapstructure:"burst"`
	Pattern    PatternConfig    `mapstructure:"pattern"`
	Global     GlobalConfig     `mapstructure:"global"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Response   ResponseConfig   `mapstructure:"response"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Suspicious SuspiciousConfig `mapstructure:"suspicious"`
}

type RateLimitConfig struct {
	Window         time.Duration `mapstructure:"window"`
	EmergencyLimit int64         `mapstructure:"emergency_limit"`
	AdminLimit     int64         `mapstructure:"admin_limit"`
	MutatingLimit  int64         `mapstructure:"mutating_limit"`
	DefaultLimit   int64         `mapstructure:"default_limit"`
	ContactLimit   int64         `mapstructure:"contact_limit"`
	ContactWindow  time.Duration `mapstructure:"contact_window"`
	PenaltyStep    time.Duration `mapstructure:"penalty_step"`
	PenaltyCeiling time.Duration `mapstructure:"penalty_ceiling"`
	PenaltyTTL     time.Duration `mapstructure:"penalty_ttl"`
}

type BurstConfig struct {
	ShortWindow    time.Duration `mapstructure:"short_window"`
	ShortThreshold int64         `mapstructure:"short_threshold"`
	LongWindow     time.Duration `mapstructure:"long_window"`
	LongThreshold  int64         `mapstructure:"long_threshold"`
	BanDuration    time.Duration `mapstructure:"ban_duration"`
}

type PatternConfig struct {
	SignatureWindow    time.Duration `mapstructure:"signature_window"`
	SignatureThreshold int64         `mapstructure:"signature_threshold"`
	PathWindow         time.Duration `mapstructure:"path_window"`
	PathThreshold      int64         `mapstructure:"path_threshold"`
	BanDuration        time.Duration `mapstructure:"ban_duration"`
}

type GlobalConfig struct {
	Window            time.Duration `mapstructure:"window"`
	Threshold         int64         `mapstructure:"threshold"`
	EmergencyDuration time.Duration `mapstructure:"emergency_duration"`
}

type ScannerConfig struct {
	MaxBodyBytes       int  `mapstructure:"max_body_bytes"`
	TimingAnalysis     bool `mapstructure:"timing_analysis"`
	SkipAdvancedChecks bool `mapstructure:"skip_advanced_checks"`
}

type ReputationConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	HistoryLength int           `mapstructure:"history_length"`
	HistoryTTL    time.Duration `mapstructure:"history_ttl"`
	MinHistory    int           `mapstructure:"min_history"`
	BanDuration   time.Duration `mapstructure:"ban_duration"`
}

type ResponseConfig struct {
	CriticalBan      time.Duration `mapstructure:"critical_ban"`
	HighBan          time.Duration `mapstructure:"high_ban"`
	MonitorBan       time.Duration `mapstructure:"monitor_ban"`
	MonitorThreshold int64         `mapstructure:"monitor_threshold"`
	MonitorTTL       time.Duration `mapstructure:"monitor_ttl"`
	StatsTTL         time.Duration `mapstructure:"stats_ttl"`
}

type AdminConfig struct {
	LoginAttemptLimit  int64         `mapstructure:"login_attempt_limit"`
	GlobalAttemptLimit int64         `mapstructure:"global_attempt_limit"`
	AttemptTTL         time.Duration `mapstructure:"attempt_ttl"`
	EmergencyDuration  time.Duration `mapstructure:"emergency_duration"`
	RequestLimit       int64         `mapstructure:"request_limit"`
	RequestWindow      time.Duration `mapstructure:"request_window"`
}

type SuspiciousConfig struct {
	ScoreThreshold int64         `mapstructure:"score_threshold"`
	ScoreTTL       time.Duration `mapstructure:"score_ttl"`
	BanDuration    time.Duration `mapstructure:"ban_duration"`
}

type TelemetryConfig struct {
	Exporters []ExporterConfig `mapstructure:"exporters"`
}

type ExporterConfig struct {
	Name     string                 `mapstructure:"name"`
	Settings map[string]interface{} `mapstructure:"settings"`
}

type GeoIPConfig struct {
	CountryDB string `mapstructure:"country_db"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %w", err)
	}
	setDefaultValues(&globalConfig)
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found, using only environment variables", fileName)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

// Default returns a configuration populated only with defaults. Tests and the
// CLI use it when no config file is present.
func Default() *Config {
	cfg := &Config{}
	setDefaultValues(cfg)
	return cfg
}

func setDefaultValues(cfg *Config) {
	if cfg.Server.ProxyPort == 0 {
		cfg.Server.ProxyPort = 8081
	}
	if cfg.Server.AdminPort == 0 {
		cfg.Server.AdminPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.DocsFile == "" {
		cfg.Server.DocsFile = "./docs/swagger.json"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.Timeout == 0 {
		cfg.Redis.Timeout = 200 * time.Millisecond
	}

	st := &cfg.Store
	if st.Backend == "" {
		st.Backend = "redis"
	}
	if st.Capacity == 0 {
		st.Capacity = 100_000
	}
	if st.SweepInterval == 0 {
		st.SweepInterval = 30 * time.Second
	}
	if st.Breaker.FailureThreshold == 0 {
		st.Breaker.FailureThreshold = 5
	}
	if st.Breaker.OpenTimeout == 0 {
		st.Breaker.OpenTimeout = 10 * time.Second
	}

	sh := &cfg.Shield
	if sh.Profile == "" {
		sh.Profile = "ddos_protection"
	}
	if sh.AdminPrefix == "" {
		sh.AdminPrefix = "/admin/"
	}
	if len(sh.ContactPaths) == 0 {
		sh.ContactPaths = []string{"/contact/", "/api/contact/"}
	}
	if sh.LocalCacheTTL == 0 {
		sh.LocalCacheTTL = 5 * time.Second
	}
	if sh.AlertsPerSec == 0 {
		sh.AlertsPerSec = 5
	}

	rl := &sh.RateLimit
	setDuration(&rl.Window, time.Minute)
	setInt(&rl.EmergencyLimit, 10)
	setInt(&rl.AdminLimit, 5)
	setInt(&rl.MutatingLimit, 10)
	setInt(&rl.DefaultLimit, 50)
	setInt(&rl.ContactLimit, 3)
	setDuration(&rl.ContactWindow, time.Hour)
	setDuration(&rl.PenaltyStep, 30*time.Second)
	setDuration(&rl.PenaltyCeiling, 300*time.Second)
	setDuration(&rl.PenaltyTTL, time.Hour)

	b := &sh.Burst
	setDuration(&b.ShortWindow, 10*time.Second)
	setInt(&b.ShortThreshold, 20)
	setDuration(&b.LongWindow, time.Minute)
	setInt(&b.LongThreshold, 100)
	setDuration(&b.BanDuration, 1800*time.Second)

	p := &sh.Pattern
	setDuration(&p.SignatureWindow, time.Minute)
	setInt(&p.SignatureThreshold, 10)
	setDuration(&p.PathWindow, 5*time.Minute)
	setInt(&p.PathThreshold, 50)
	setDuration(&p.BanDuration, 900*time.Second)

	g := &sh.Global
	setDuration(&g.Window, time.Minute)
	setInt(&g.Threshold, 1000)
	setDuration(&g.EmergencyDuration, 600*time.Second)

	if sh.Scanner.MaxBodyBytes == 0 {
		sh.Scanner.MaxBodyBytes = 64 * 1024
	}

	rep := &sh.Reputation
	setDuration(&rep.CacheTTL, time.Hour)
	if rep.HistoryLength == 0 {
		rep.HistoryLength = 100
	}
	setDuration(&rep.HistoryTTL, time.Hour)
	if rep.MinHistory == 0 {
		rep.MinHistory = 5
	}
	setDuration(&rep.BanDuration, 7200*time.Second)

	rs := &sh.Response
	setDuration(&rs.CriticalBan, 86400*time.Second)
	setDuration(&rs.HighBan, 3600*time.Second)
	setDuration(&rs.MonitorBan, 1800*time.Second)
	setInt(&rs.MonitorThreshold, 5)
	setDuration(&rs.MonitorTTL, time.Hour)
	setDuration(&rs.StatsTTL, 24*time.Hour)

	a := &sh.Admin
	setInt(&a.LoginAttemptLimit, 5)
	setInt(&a.GlobalAttemptLimit, 30)
	setDuration(&a.AttemptTTL, time.Hour)
	setDuration(&a.EmergencyDuration, time.Hour)
	setInt(&a.RequestLimit, 20)
	setDuration(&a.RequestWindow, time.Minute)

	s := &sh.Suspicious
	setInt(&s.ScoreThreshold, 10)
	setDuration(&s.ScoreTTL, time.Hour)
	setDuration(&s.BanDuration, 3600*time.Second)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func setInt(n *int64, def int64) {
	if *n == 0 {
		*n = def
	}
}

func GetConfig() *Config {
	return &globalConfig
}
