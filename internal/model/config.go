package model

import (
	"fmt"
	"time"
)

// Config holds all client settings
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Stream  StreamConfig  `yaml:"stream" mapstructure:"stream"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Layout  LayoutConfig  `yaml:"layout" mapstructure:"layout"`
	Focus   FocusConfig   `yaml:"focus" mapstructure:"focus"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig locates the research backend
type ServerConfig struct {
	Origin      string `yaml:"origin" mapstructure:"origin"`             // Page origin, e.g. http://localhost:8000
	WorkspaceID string `yaml:"workspace_id" mapstructure:"workspace_id"` // Defaults to "default"
	Transport   string `yaml:"transport" mapstructure:"transport"`       // websocket or nats
	NATSURL     string `yaml:"nats_url" mapstructure:"nats_url"`
	EventsPath  string `yaml:"events_path" mapstructure:"events_path"`
}

// StreamConfig controls the reconnecting event channel
type StreamConfig struct {
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" mapstructure:"max_reconnect_attempts"`
	BaseReconnectDelay   time.Duration `yaml:"base_reconnect_delay" mapstructure:"base_reconnect_delay"`
	EventLogSize         int           `yaml:"event_log_size" mapstructure:"event_log_size"`
	PingInterval         time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"` // 0 disables keep-alive
}

// HTTPConfig controls repository API requests
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	FetchWorkers      int           `yaml:"fetch_workers" mapstructure:"fetch_workers"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	Proxy             string        `yaml:"proxy" mapstructure:"proxy"` // Empty uses HTTP_PROXY/HTTPS_PROXY
}

// CacheConfig controls response and lookup caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	MissTTL   time.Duration `yaml:"miss_ttl" mapstructure:"miss_ttl"` // How long a failed node lookup stays absent
}

// LayoutConfig controls tree layout
type LayoutConfig struct {
	Strategy      string  `yaml:"strategy" mapstructure:"strategy"` // subtree or rows
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxDepth      int     `yaml:"max_depth" mapstructure:"max_depth"`
}

// FocusConfig controls focus mode and debouncing
type FocusConfig struct {
	FocusMode       bool          `yaml:"focus_mode" mapstructure:"focus_mode"`
	SearchDebounce  time.Duration `yaml:"search_debounce" mapstructure:"search_debounce"`
	RefetchDebounce time.Duration `yaml:"refetch_debounce" mapstructure:"refetch_debounce"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // Empty disables the endpoint
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Origin:      "http://localhost:8000",
			WorkspaceID: "default",
			Transport:   "websocket",
			NATSURL:     "nats://127.0.0.1:4222",
			EventsPath:  "/ws/events",
		},
		Stream: StreamConfig{
			MaxReconnectAttempts: 5,
			BaseReconnectDelay:   time.Second,
			EventLogSize:         100,
			PingInterval:         30 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:           15 * time.Second,
			UserAgent:         "claimgraph/0.3",
			MaxBodyBytes:      8 << 20,
			RequestsPerSecond: 10,
			Burst:             5,
			FetchWorkers:      4,
			MaxRetries:        2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: time.Minute,
			DiskTTL:   24 * time.Hour,
			MissTTL:   30 * time.Second,
		},
		Layout: LayoutConfig{
			Strategy:      "subtree",
			MinConfidence: 0,
			MaxDepth:      10,
		},
		Focus: FocusConfig{
			FocusMode:       false,
			SearchDebounce:  300 * time.Millisecond,
			RefetchDebounce: 200 * time.Millisecond,
		},
	}
}

// Validate rejects settings the client cannot run with
func (c *Config) Validate() error {
	if c.Server.Origin == "" {
		return fmt.Errorf("server.origin is required")
	}
	switch c.Server.Transport {
	case "websocket", "nats":
	default:
		return fmt.Errorf("server.transport: unknown transport %q", c.Server.Transport)
	}
	if c.Stream.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("stream.max_reconnect_attempts must be positive, got %d", c.Stream.MaxReconnectAttempts)
	}
	if c.Stream.BaseReconnectDelay <= 0 {
		return fmt.Errorf("stream.base_reconnect_delay must be positive, got %s", c.Stream.BaseReconnectDelay)
	}
	if c.Stream.EventLogSize <= 0 {
		return fmt.Errorf("stream.event_log_size must be positive, got %d", c.Stream.EventLogSize)
	}
	switch c.Layout.Strategy {
	case "subtree", "rows":
	default:
		return fmt.Errorf("layout.strategy: unknown strategy %q", c.Layout.Strategy)
	}
	if c.Layout.MinConfidence < 0 || c.Layout.MinConfidence > 1 {
		return fmt.Errorf("layout.min_confidence must be within [0,1], got %v", c.Layout.MinConfidence)
	}
	return nil
}
