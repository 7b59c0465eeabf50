package mayus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultServerListen 服务端默认监听地址
	DefaultServerListen = ":8500"
	// DefaultClientListen 客户端默认本地地址
	DefaultClientListen = ":8000"

	DefaultBackoffInitial = 200 * time.Millisecond
	DefaultBackoffMax     = 5 * time.Second
	DefaultHistorySize    = 128
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Listen    string `json:"listen,omitempty"`
	Remote    string `json:"remote"`
	OutputDir string `json:"output_dir,omitempty"`

	// 0 表示一直等待回复(不重传)
	ReplyTimeoutMs   int     `json:"reply_timeout_ms,omitempty"`
	MaxRetries       int     `json:"max_retries,omitempty"`
	BackoffInitialMs int     `json:"backoff_initial_ms,omitempty"`
	BackoffMaxMs     int     `json:"backoff_max_ms,omitempty"`
	LinesPerSecond   float64 `json:"lines_per_second,omitempty"`
	DSCP             int     `json:"dscp,omitempty"`

	ReplyTimeout   time.Duration `json:"-"`
	BackoffInitial time.Duration `json:"-"`
	BackoffMax     time.Duration `json:"-"`
}

// Adjust fills defaults and converts the millisecond fields into durations.
func (c *ClientConfig) Adjust() {
	if c.Listen == "" {
		c.Listen = DefaultClientListen
	}
	c.ReplyTimeout = getDuration(c.ReplyTimeoutMs, time.Millisecond, c.ReplyTimeout)
	c.BackoffInitial = getDuration(c.BackoffInitialMs, time.Millisecond, c.BackoffInitial)
	c.BackoffMax = getDuration(c.BackoffMaxMs, time.Millisecond, c.BackoffMax)
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = c.BackoffInitial
	}
}

func (c *ClientConfig) Validate() error {
	c.Adjust()
	if c.Remote == "" {
		return errors.New("remote address is required")
	}
	if c.ReplyTimeout < 0 {
		return fmt.Errorf("invalid reply timeout: %s", c.ReplyTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.MaxRetries)
	}
	if c.LinesPerSecond < 0 {
		return fmt.Errorf("invalid lines per second: %v", c.LinesPerSecond)
	}
	return validateDSCP(c.DSCP)
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Listen  string `json:"listen,omitempty"`
	Lang    string `json:"lang,omitempty"`
	Charset string `json:"charset,omitempty"`

	// Legacy 单次传输：第一个数据报就是文件名，空数据报结束整个循环
	Legacy bool `json:"legacy,omitempty"`

	IdleTimeoutSec int     `json:"idle_timeout_sec,omitempty"`
	MaxSessions    int     `json:"max_sessions,omitempty"`
	PeerRate       float64 `json:"peer_rate,omitempty"`
	PeerBurst      int     `json:"peer_burst,omitempty"`
	MirrorDir      string  `json:"mirror_dir,omitempty"`
	ReportPath     string  `json:"report_path,omitempty"`
	HistorySize    int     `json:"history_size,omitempty"`
	DSCP           int     `json:"dscp,omitempty"`

	WebPort  int    `json:"web_port,omitempty"`
	LogLevel string `json:"log_level,omitempty"`

	IdleTimeout time.Duration `json:"-"`
}

func (c *ServerConfig) Adjust() {
	if c.Listen == "" {
		c.Listen = DefaultServerListen
	}
	c.IdleTimeout = getDuration(c.IdleTimeoutSec, time.Second, c.IdleTimeout)
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.PeerRate > 0 && c.PeerBurst <= 0 {
		c.PeerBurst = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *ServerConfig) Validate() error {
	c.Adjust()
	if c.MaxSessions < 0 {
		return fmt.Errorf("invalid max sessions: %d", c.MaxSessions)
	}
	if c.PeerRate < 0 {
		return fmt.Errorf("invalid peer rate: %v", c.PeerRate)
	}
	if c.WebPort < 0 || c.WebPort > 65535 {
		return fmt.Errorf("invalid web port: %d", c.WebPort)
	}
	if _, err := NewFolder(c.Lang, c.Charset); err != nil {
		return err
	}
	return validateDSCP(c.DSCP)
}

// LoadServerConfig reads a JSON server config from path.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := new(ServerConfig)
	if err := readJSON(path, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadClientConfig reads a JSON client config from path.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := new(ClientConfig)
	if err := readJSON(path, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func validateDSCP(dscp int) error {
	if dscp < 0 || dscp > 63 {
		return fmt.Errorf("invalid dscp: %d", dscp)
	}
	return nil
}

func getDuration(n int, unit, defaultDuration time.Duration) time.Duration {
	if n > 0 {
		return time.Duration(n) * unit
	}
	return defaultDuration
}
