package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "EMA_LIVE"
	fileName  = "ema-live"
)

// Config is the client configuration, read from an optional YAML file,
// EMA_LIVE_* environment variables and command line flags, in increasing
// order of precedence.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Capture      CaptureConfig      `mapstructure:"capture"`
	Playback     PlaybackConfig     `mapstructure:"playback"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Log          LogConfig          `mapstructure:"log"`
	EchoAgent    EchoAgentConfig    `mapstructure:"echo_agent"`
}

type ServerConfig struct {
	URL            string        `mapstructure:"url"`
	UserID         string        `mapstructure:"user_id"`
	SessionID      string        `mapstructure:"session_id"` // empty generates one per run
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
}

type CaptureConfig struct {
	Backend         string        `mapstructure:"backend"`
	FrameDuration   time.Duration `mapstructure:"frame_duration"`
	QueueSize       int           `mapstructure:"queue_size"`
	FramesPerBuffer int           `mapstructure:"frames_per_buffer"` // portaudio only
}

type PlaybackConfig struct {
	Capacity time.Duration `mapstructure:"capacity"`
}

type ConversationConfig struct {
	AppendDeltas bool `mapstructure:"append_deltas"`
	HistoryLimit int  `mapstructure:"history_limit"`
}

type LogConfig struct {
	File string `mapstructure:"file"`
}

type EchoAgentConfig struct {
	Address string `mapstructure:"address"`
}

const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.url", "ws://localhost:8000")
	v.SetDefault("server.user_id", "user")
	v.SetDefault("server.session_id", "")
	v.SetDefault("server.reconnect_delay", 2*time.Second)
	v.SetDefault("server.dial_timeout", 10*time.Second)
	v.SetDefault("capture.backend", BackendMiniaudio)
	v.SetDefault("capture.frame_duration", audio.DefaultFrameDuration)
	v.SetDefault("capture.queue_size", audio.DefaultFrameQueue)
	v.SetDefault("capture.frames_per_buffer", 480)
	v.SetDefault("playback.capacity", 30*time.Second)
	v.SetDefault("conversation.append_deltas", false)
	v.SetDefault("conversation.history_limit", 200)
	v.SetDefault("log.file", "ema-live.log")
	v.SetDefault("echo_agent.address", "127.0.0.1:8000")
	return v
}

// BindFlags binds the flags that exist in flags to their config keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flag, key := range map[string]string{
		"server":          "server.url",
		"user":            "server.user_id",
		"session":         "server.session_id",
		"reconnect-delay": "server.reconnect_delay",
		"backend":         "capture.backend",
		"append-deltas":   "conversation.append_deltas",
		"log-file":        "log.file",
		"listen":          "echo_agent.address",
	} {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads path, or searches for ema-live.yaml in the working directory and
// the user config directory when path is empty, and validates the result.
// A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ema-live")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}
	if err := c.Conversation.Validate(); err != nil {
		return fmt.Errorf("conversation config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("url is invalid: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("url scheme must be ws, wss, http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	if s.UserID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	if strings.Contains(s.UserID, "/") || strings.Contains(s.SessionID, "/") {
		return fmt.Errorf("user_id and session_id must not contain '/'")
	}
	if s.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect_delay cannot be negative, got %s", s.ReconnectDelay)
	}
	if s.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive, got %s", s.DialTimeout)
	}
	return nil
}

func (c *CaptureConfig) Validate() error {
	switch c.Backend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		return fmt.Errorf("backend must be %s or %s, got %q", BackendMiniaudio, BackendPortaudio, c.Backend)
	}
	if c.FrameDuration < 10*time.Millisecond || c.FrameDuration > 200*time.Millisecond {
		return fmt.Errorf("frame_duration must be between 10ms and 200ms, got %s", c.FrameDuration)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize)
	}
	if c.FramesPerBuffer < 1 {
		return fmt.Errorf("frames_per_buffer must be at least 1, got %d", c.FramesPerBuffer)
	}
	return nil
}

func (p *PlaybackConfig) Validate() error {
	if p.Capacity < time.Second {
		return fmt.Errorf("capacity must be at least 1s, got %s", p.Capacity)
	}
	return nil
}

func (c *ConversationConfig) Validate() error {
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", c.HistoryLimit)
	}
	return nil
}
