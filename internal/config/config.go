package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds process-wide settings, loaded once at startup.
type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	DisconnectGrace time.Duration
	RoomTTLAfterEnd time.Duration
	PingInterval    time.Duration

	DefaultTimeControl string

	MaxConcurrentRooms int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:         ":8080",
		DisconnectGrace:    60 * time.Second,
		RoomTTLAfterEnd:    5 * time.Minute,
		PingInterval:       30 * time.Second,
		DefaultTimeControl: "5+0",
		MaxConcurrentRooms: 1000,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if d, ok, err := envMillis("DISCONNECT_GRACE_MS"); err != nil {
		return nil, err
	} else if ok {
		cfg.DisconnectGrace = d
	}
	if d, ok, err := envMillis("ROOM_TTL_AFTER_END_MS"); err != nil {
		return nil, err
	} else if ok {
		cfg.RoomTTLAfterEnd = d
	}
	if d, ok, err := envMillis("PING_INTERVAL_MS"); err != nil {
		return nil, err
	} else if ok {
		cfg.PingInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("DEFAULT_TIME_CONTROL")); v != "" {
		cfg.DefaultTimeControl = v
	}
	if v := strings.TrimSpace(os.Getenv("MAX_CONCURRENT_ROOMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentRooms = n
		}
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	return cfg, nil
}

func envMillis(key string) (time.Duration, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, false, errors.New(key + " must be a positive integer of milliseconds")
	}
	return time.Duration(n) * time.Millisecond, true, nil
}
