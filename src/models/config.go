package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	Sparkle  MSparkleConfig  `yaml:"sparkle"`
	Network  MNetworkConfig  `yaml:"network"`
	Ticker   MTickerConfig   `yaml:"ticker"`
	Storage  MStorageConfig  `yaml:"storage"`
	Calendar MCalendarConfig `yaml:"calendar"`
}

type MSparkleConfig struct {
	BaseURL       string `yaml:"base_url"`
	WSPath        string `yaml:"ws_path"`
	StartPath     string `yaml:"start_path"`
	RunningStatus string `yaml:"running_status"`
	Timeout       int    `yaml:"timeout"` // seconds, bounds bootstrap and handshake
}

type MNetworkConfig struct {
	Proxies        []string `yaml:"proxies,omitempty"`
	RequestTimeout int      `yaml:"timeout"`
	UserAgent      string   `yaml:"user_agent"`
}

type MTickerConfig struct {
	SendBuffer     int            `yaml:"send_buffer"`
	ConditionTable map[int]string `yaml:"condition_table,omitempty"` // Optional, merged over the defaults
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite | postgres | redis | memory
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	Schema             string `yaml:"schema"`
	RedisAddr          string `yaml:"redis_addr"`
	RedisPassword      string `yaml:"redis_password"`
	RedisDB            int    `yaml:"redis_db"`
}

type MCalendarConfig struct {
	MIC string `yaml:"mic"`
}
