// Package config provides Viper-based configuration loading for the relay server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig holds the HTTP front door settings.
type HTTPConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener. The bare PORT environment
	// variable overrides it.
	Port int `mapstructure:"port"`
	// StaticDir is the directory served at "/". Empty disables static serving.
	StaticDir string `mapstructure:"static_dir"`
	// AllowedOrigins lists the websocket origins accepted on upgrade; "*" accepts any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ReadHeaderTimeout bounds how long the server waits for request headers.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// WebSocketConfig holds per-connection websocket settings.
type WebSocketConfig struct {
	// PingInterval is how often the server pings an idle client.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// PongWait is how long the server waits for any frame before dropping the client.
	PongWait time.Duration `mapstructure:"pong_wait"`
	// WriteWait is the per-write deadline.
	WriteWait time.Duration `mapstructure:"write_wait"`
	// MaxMessageBytes caps the size of a single inbound frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	// SendBuffer is the number of outbound frames queued per connection.
	SendBuffer int `mapstructure:"send_buffer"`
}

// PhysicsConfig holds the world parameters handed to every new room.
type PhysicsConfig struct {
	Gravity         float64 `mapstructure:"gravity"`
	FlapVelocity    float64 `mapstructure:"flap_velocity"`
	PipeSpeed       float64 `mapstructure:"pipe_speed"`
	Gap             float64 `mapstructure:"gap"`
	SpawnIntervalMs int     `mapstructure:"spawn_interval_ms"`
	GroundY         float64 `mapstructure:"ground_y"`
	WorldWidth      float64 `mapstructure:"world_width"`
	WorldHeight     float64 `mapstructure:"world_height"`
}

// RoomConfig holds room lifecycle settings.
type RoomConfig struct {
	// JoinDelay is added to the creation instant to form a room's start time.
	JoinDelay time.Duration `mapstructure:"join_delay"`
	// DefaultRoom is the room joined when a client names none.
	DefaultRoom string `mapstructure:"default_room"`
	// Defaults are the physics parameters fixed into each room at creation.
	Defaults PhysicsConfig `mapstructure:"defaults"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Room      RoomConfig      `mapstructure:"room"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateHTTP(c.HTTP); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRoom(c.Room); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	if h.ReadHeaderTimeout < 0 {
		errs = append(errs, "http.read_header_timeout must not be negative")
	}
	if h.ShutdownTimeout < 0 {
		errs = append(errs, "http.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.PongWait <= 0 {
		errs = append(errs, "websocket.pong_wait must be positive")
	}
	if w.PingInterval <= 0 || w.PingInterval >= w.PongWait {
		errs = append(errs, fmt.Sprintf("websocket.ping_interval must be positive and shorter than pong_wait, got %s", w.PingInterval))
	}
	if w.WriteWait <= 0 {
		errs = append(errs, "websocket.write_wait must be positive")
	}
	if w.MaxMessageBytes < 1 {
		errs = append(errs, fmt.Sprintf("websocket.max_message_bytes must be >= 1, got %d", w.MaxMessageBytes))
	}
	if w.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", w.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRoom(r RoomConfig) error {
	var errs []string
	if r.JoinDelay < 0 {
		errs = append(errs, "room.join_delay must not be negative")
	}
	if r.DefaultRoom == "" {
		errs = append(errs, "room.default_room must not be empty")
	}
	d := r.Defaults
	if d.WorldWidth <= 0 || d.WorldHeight <= 0 {
		errs = append(errs, fmt.Sprintf("room.defaults world dimensions must be positive, got %gx%g", d.WorldWidth, d.WorldHeight))
	}
	if d.Gap <= 0 {
		errs = append(errs, fmt.Sprintf("room.defaults.gap must be positive, got %g", d.Gap))
	}
	if d.SpawnIntervalMs < 1 {
		errs = append(errs, fmt.Sprintf("room.defaults.spawn_interval_ms must be >= 1, got %d", d.SpawnIntervalMs))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path skips the file and uses
// defaults plus environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and environment bindings applied.
//
// Postcondition: FLAPPER_<SECTION>_<KEY> variables override any key; PORT overrides http.port.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("FLAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Hosting platforms hand out the listen port as a bare PORT variable.
	_ = v.BindEnv("http.port", "FLAPPER_HTTP_PORT", "PORT")

	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.static_dir", "public")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_header_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "5s")

	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_bytes", 4096)
	v.SetDefault("websocket.send_buffer", 256)

	v.SetDefault("room.join_delay", "1500ms")
	v.SetDefault("room.default_room", "lobby")
	v.SetDefault("room.defaults.gravity", 1800)
	v.SetDefault("room.defaults.flap_velocity", -520)
	v.SetDefault("room.defaults.pipe_speed", 180)
	v.SetDefault("room.defaults.gap", 180)
	v.SetDefault("room.defaults.spawn_interval_ms", 1500)
	v.SetDefault("room.defaults.ground_y", 520)
	v.SetDefault("room.defaults.world_width", 720)
	v.SetDefault("room.defaults.world_height", 600)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
