package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "thorium.cfg.json"

// ServerConfig holds the HTTP/WebSocket transport settings.
type ServerConfig struct {
	Address           string        `json:"address" mapstructure:"address"`
	AllowedOrigins    []string      `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	CommandsPerSecond float64       `json:"commandsPerSecond" mapstructure:"commandsPerSecond"`
	CommandBurst      int           `json:"commandBurst" mapstructure:"commandBurst"`
	ShutdownTimeout   time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout"`
}

// HubConfig holds broadcast hub settings.
type HubConfig struct {
	BufferSize int `json:"bufferSize" mapstructure:"bufferSize"`
}

// MonitorConfig holds status monitor settings. An interval of zero disables
// the monitor.
type MonitorConfig struct {
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// PostgresConfig holds journal settings for the postgres driver.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

// SQLiteConfig holds journal settings for the sqlite driver. An empty path
// keeps the journal in memory.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// JournalConfig holds command journal settings.
type JournalConfig struct {
	Enabled       bool           `json:"enabled" mapstructure:"enabled"`
	Driver        string         `json:"driver" mapstructure:"driver"`
	FlushInterval time.Duration  `json:"flushInterval" mapstructure:"flushInterval"`
	BatchSize     int            `json:"batchSize" mapstructure:"batchSize"`
	QueueLimit    int            `json:"queueLimit" mapstructure:"queueLimit"`
	SQLite        SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres      PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`

	// BackupPath receives gzipped line protocol when the server is unreachable.
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// RedisConfig holds the Redis mirror settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	URL      string `json:"url" mapstructure:"url"`
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
	Prefix   string `json:"prefix" mapstructure:"prefix"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level          string
	Dir            string
	GraylogEnabled bool
	GraylogAddress string
}

// Load sets default values, enables THORIUM_ environment overrides and reads
// the JSON config file from configDir. Defaults stay in effect when the file
// cannot be read.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("thorium")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./thoriumlogs")

	viper.SetDefault("server.address", ":4444")
	viper.SetDefault("server.allowedOrigins", []string{"*"})
	viper.SetDefault("server.commandsPerSecond", 50)
	viper.SetDefault("server.commandBurst", 100)
	viper.SetDefault("server.shutdownTimeout", "10s")

	viper.SetDefault("hub.bufferSize", 16)

	viper.SetDefault("monitor.interval", "30s")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("journal.enabled", true)
	viper.SetDefault("journal.driver", "sqlite")
	viper.SetDefault("journal.flushInterval", "2s")
	viper.SetDefault("journal.batchSize", 500)
	viper.SetDefault("journal.queueLimit", 10000)
	viper.SetDefault("journal.sqlite.path", "")
	viper.SetDefault("journal.postgres.host", "localhost")
	viper.SetDefault("journal.postgres.port", "5432")
	viper.SetDefault("journal.postgres.username", "postgres")
	viper.SetDefault("journal.postgres.password", "postgres")
	viper.SetDefault("journal.postgres.database", "thorium")
	viper.SetDefault("journal.postgres.sslmode", "disable")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "thorium-metrics")
	viper.SetDefault("influx.bucket", "thorium-commands")
	viper.SetDefault("influx.backupPath", "")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "thorium:")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the transport configuration.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address:           viper.GetString("server.address"),
		AllowedOrigins:    viper.GetStringSlice("server.allowedOrigins"),
		CommandsPerSecond: viper.GetFloat64("server.commandsPerSecond"),
		CommandBurst:      viper.GetInt("server.commandBurst"),
		ShutdownTimeout:   viper.GetDuration("server.shutdownTimeout"),
	}
}

// GetHubConfig returns the broadcast hub configuration.
func GetHubConfig() HubConfig {
	return HubConfig{
		BufferSize: viper.GetInt("hub.bufferSize"),
	}
}

// GetJournalConfig returns the command journal configuration.
func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Enabled:       viper.GetBool("journal.enabled"),
		Driver:        viper.GetString("journal.driver"),
		FlushInterval: viper.GetDuration("journal.flushInterval"),
		BatchSize:     viper.GetInt("journal.batchSize"),
		QueueLimit:    viper.GetInt("journal.queueLimit"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("journal.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("journal.postgres.host"),
			Port:     viper.GetString("journal.postgres.port"),
			Username: viper.GetString("journal.postgres.username"),
			Password: viper.GetString("journal.postgres.password"),
			Database: viper.GetString("journal.postgres.database"),
			SSLMode:  viper.GetString("journal.postgres.sslmode"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),

		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetRedisConfig returns the Redis mirror configuration.
func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  viper.GetBool("redis.enabled"),
		URL:      viper.GetString("redis.url"),
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
		Prefix:   viper.GetString("redis.prefix"),
	}
}

// GetMonitorConfig returns the status monitor configuration.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetLoggingConfig returns the log output configuration.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}
