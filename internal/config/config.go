package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Database     DatabaseConfig      `yaml:"database"`
	Redis        RedisConfig         `yaml:"redis"`
	Kafka        KafkaConfig         `yaml:"kafka"`
	Reconcile    ReconcileConfig     `yaml:"reconcile"`
	Leaderboard  LeaderboardConfig   `yaml:"leaderboard"`
	Points       PointsConfig        `yaml:"points"`
	Achievements []AchievementConfig `yaml:"achievements"`
	Log          LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the SQL store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres | sqlite
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	SlowThreshold   time.Duration `yaml:"slow_threshold"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode,
	)
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix"`
	SnapshotTTL  time.Duration `yaml:"snapshot_ttl"`
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	GroupID       string        `yaml:"group_id"`
	Enabled       bool          `yaml:"enabled"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// ReconcileConfig holds aggregate reconciliation worker configuration
type ReconcileConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	Enabled   bool          `yaml:"enabled"`
}

// LeaderboardConfig holds leaderboard-specific configuration
type LeaderboardConfig struct {
	DefaultPerPage     int `yaml:"default_per_page"`
	MaxPerPage         int `yaml:"max_per_page"`
	BroadcastTop       int `yaml:"broadcast_top"`
	RecentTransactions int `yaml:"recent_transactions"`
	HistoryLimit       int `yaml:"history_limit"`
	MaxHistoryLimit    int `yaml:"max_history_limit"`
}

// PointsConfig holds the award for each natural activity.
type PointsConfig struct {
	EventJoin        int64 `yaml:"event_join"`
	EventComplete    int64 `yaml:"event_complete"`
	EventOrganize    int64 `yaml:"event_organize"`
	ReviewGiven      int64 `yaml:"review_given"`
	FiveStarReceived int64 `yaml:"five_star_received"`
}

// AchievementConfig describes one catalog entry. When the list is empty the
// built-in catalog is used.
type AchievementConfig struct {
	Code        string `yaml:"code"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	BonusPoints int64  `yaml:"bonus_points"`
	Condition   string `yaml:"condition"` // activity_count | organized_completed | never
	Activity    string `yaml:"activity"`
	Threshold   int64  `yaml:"threshold"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration after expanding environment variables.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.Name == "" {
		c.Database.Name = "gamification"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "gamification.db"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = 1 * time.Hour
	}
	if c.Database.MaxConnIdleTime == 0 {
		c.Database.MaxConnIdleTime = 30 * time.Minute
	}
	if c.Database.SlowThreshold == 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "gamification:leaderboard:"
	}
	if c.Redis.SnapshotTTL == 0 {
		c.Redis.SnapshotTTL = 1 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "sports-domain-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "gamification-consumer"
	}
	if c.Kafka.RetryAttempts == 0 {
		c.Kafka.RetryAttempts = 3
	}
	if c.Kafka.RetryDelay == 0 {
		c.Kafka.RetryDelay = 1 * time.Second
	}

	// Reconcile defaults
	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = 30 * time.Minute
	}
	if c.Reconcile.BatchSize == 0 {
		c.Reconcile.BatchSize = 500
	}

	// Leaderboard defaults
	if c.Leaderboard.DefaultPerPage == 0 {
		c.Leaderboard.DefaultPerPage = 20
	}
	if c.Leaderboard.MaxPerPage == 0 {
		c.Leaderboard.MaxPerPage = 100
	}
	if c.Leaderboard.BroadcastTop == 0 {
		c.Leaderboard.BroadcastTop = 10
	}
	if c.Leaderboard.RecentTransactions == 0 {
		c.Leaderboard.RecentTransactions = 10
	}
	if c.Leaderboard.HistoryLimit == 0 {
		c.Leaderboard.HistoryLimit = 100
	}
	if c.Leaderboard.MaxHistoryLimit == 0 {
		c.Leaderboard.MaxHistoryLimit = 500
	}

	// Point awards
	if c.Points.EventJoin == 0 {
		c.Points.EventJoin = 10
	}
	if c.Points.EventComplete == 0 {
		c.Points.EventComplete = 30
	}
	if c.Points.EventOrganize == 0 {
		c.Points.EventOrganize = 50
	}
	if c.Points.ReviewGiven == 0 {
		c.Points.ReviewGiven = 5
	}
	if c.Points.FiveStarReceived == 0 {
		c.Points.FiveStarReceived = 10
	}

	if c.Log.Mode == "" {
		c.Log.Mode = "development"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Reconcile.Enabled = true
	return cfg
}
