package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fenggwsx/roomchat/internal/secrets"
)

// Environment keys read by LoadServerConfig and LoadClientConfig.
const (
	KeyListenAddr       = "ROOMCHAT_LISTEN_ADDR"
	KeyAllowedOrigins   = "ROOMCHAT_ALLOWED_ORIGINS"
	KeyDBPath           = "ROOMCHAT_DB_PATH"
	KeyJWTSecret        = "ROOMCHAT_JWT_SECRET"
	KeyJWTIssuer        = "ROOMCHAT_JWT_ISSUER"
	KeyJWTExpiration    = "ROOMCHAT_JWT_EXPIRATION"
	KeyOperatorPassword = "ROOMCHAT_OPERATOR_PASSWORD_HASH"
	KeyPingInterval     = "ROOMCHAT_PING_INTERVAL"
	KeyPongWait         = "ROOMCHAT_PONG_WAIT"
	KeyWriteTimeout     = "ROOMCHAT_WRITE_TIMEOUT"
	KeyMaxFrameBytes    = "ROOMCHAT_MAX_FRAME_BYTES"
	KeySendQueueSize    = "ROOMCHAT_SEND_QUEUE_SIZE"
	KeyHistoryLimit     = "ROOMCHAT_HISTORY_LIMIT"
	KeyMaxNameLength    = "ROOMCHAT_MAX_NAME_LENGTH"
	KeyMaxRoomLength    = "ROOMCHAT_MAX_ROOM_LENGTH"
	KeyMaxMessageLength = "ROOMCHAT_MAX_MESSAGE_LENGTH"
	KeyLogLevel         = "ROOMCHAT_LOG_LEVEL"
	KeyLogFormat        = "ROOMCHAT_LOG_FORMAT"
	KeyShutdownTimeout  = "ROOMCHAT_SHUTDOWN_TIMEOUT"
	KeyServerURL        = "ROOMCHAT_SERVER_URL"
	KeyCommandPrefix    = "ROOMCHAT_COMMAND_PREFIX"
)

// ServerConfig holds settings for the websocket server runtime.
type ServerConfig struct {
	ListenAddr     string
	AllowedOrigins []string
	Database       DatabaseConfig
	JWT            JWTConfig
	// OperatorPasswordHash is a bcrypt hash; empty disables /api/token.
	OperatorPasswordHash string

	PingInterval  time.Duration
	PongWait      time.Duration
	WriteTimeout  time.Duration
	MaxFrameBytes int
	SendQueueSize int

	HistoryLimit     int
	MaxNameLength    int
	MaxRoomLength    int
	MaxMessageLength int

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerURL     string
	CommandPrefix rune
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Path string
}

// JWTConfig defines token issuance parameters.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// LoadServerConfig builds the server configuration from p with sensible
// defaults. It fails when the JWT secret is absent or a value is malformed.
func LoadServerConfig(p secrets.Provider) (ServerConfig, error) {
	required, err := secrets.Require(p, KeyJWTSecret)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("load config: %w", err)
	}

	l := loader{p: p}
	cfg := ServerConfig{
		ListenAddr:     l.str(KeyListenAddr, ":8080"),
		AllowedOrigins: l.list(KeyAllowedOrigins, []string{"*"}),
		Database:       DatabaseConfig{Path: l.str(KeyDBPath, "roomchat.db")},
		JWT: JWTConfig{
			Secret:     required[KeyJWTSecret],
			Issuer:     l.str(KeyJWTIssuer, "roomchat"),
			Expiration: l.duration(KeyJWTExpiration, 24*time.Hour),
		},
		OperatorPasswordHash: l.str(KeyOperatorPassword, ""),

		PingInterval:  l.duration(KeyPingInterval, 54*time.Second),
		PongWait:      l.duration(KeyPongWait, 60*time.Second),
		WriteTimeout:  l.duration(KeyWriteTimeout, 10*time.Second),
		MaxFrameBytes: l.positive(KeyMaxFrameBytes, 4096),
		SendQueueSize: l.positive(KeySendQueueSize, 64),

		HistoryLimit:     l.positive(KeyHistoryLimit, 250),
		MaxNameLength:    l.positive(KeyMaxNameLength, 32),
		MaxRoomLength:    l.positive(KeyMaxRoomLength, 64),
		MaxMessageLength: l.positive(KeyMaxMessageLength, 2000),

		LogLevel:        strings.ToLower(l.str(KeyLogLevel, "info")),
		LogFormat:       strings.ToLower(l.str(KeyLogFormat, "json")),
		ShutdownTimeout: l.duration(KeyShutdownTimeout, 15*time.Second),
	}
	if l.err != nil {
		return ServerConfig{}, fmt.Errorf("load config: %w", l.err)
	}
	if cfg.PingInterval >= cfg.PongWait {
		return ServerConfig{}, fmt.Errorf("load config: %s must be shorter than %s", KeyPingInterval, KeyPongWait)
	}
	return cfg, nil
}

// LoadClientConfig builds the client configuration from p.
func LoadClientConfig(p secrets.Provider) ClientConfig {
	l := loader{p: p}
	prefix := l.str(KeyCommandPrefix, "/")
	runes := []rune(prefix)
	commandPrefix := '/'
	if len(runes) > 0 {
		commandPrefix = runes[0]
	}
	return ClientConfig{
		ServerURL:     l.str(KeyServerURL, "ws://localhost:8080/ws"),
		CommandPrefix: commandPrefix,
	}
}

// loader reads optional keys and remembers the first malformed one.
type loader struct {
	p   secrets.Provider
	err error
}

func (l *loader) lookup(key string) (string, bool) {
	v, err := l.p.Get(key)
	if err != nil {
		if !errors.Is(err, secrets.ErrMissing) && l.err == nil {
			l.err = err
		}
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (l *loader) str(key, def string) string {
	if v, ok := l.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (l *loader) list(key string, def []string) []string {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		l.fail(key, v)
		return def
	}
	return parsed
}

func (l *loader) positive(key string, def int) int {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		l.fail(key, v)
		return def
	}
	return parsed
}

func (l *loader) fail(key, value string) {
	if l.err == nil {
		l.err = fmt.Errorf("invalid %s %q", key, value)
	}
}
