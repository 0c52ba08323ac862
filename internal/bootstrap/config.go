package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config 结构体用于存储从环境变量或 .env 文件加载的配置
type Config struct {
	AppEnv     string
	ServerPort string
	LogLevel   string

	DBDriver   string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTSecret      string
	JWTExpiryHours int

	CORSAllowedOrigins []string
	RateLimitMax       int
	RateLimitWindow    time.Duration

	PresenceGrace     time.Duration
	PresenceBroadcast time.Duration

	RoundStaleAfter   time.Duration
	RoundResetEvery   time.Duration
	ChatRetention     time.Duration
	StrokeRetention   time.Duration
	RoomIdleAfter     time.Duration
	WorkerConcurrency int
	SweepOnStart      bool
}

// IsProduction 判断是否运行在生产环境
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// LoadConfig 加载配置。非空的进程环境变量优先，其次是 envFiles (默认 .env)，
// 文件不存在时忽略。
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	fileVals := make(map[string]string)
	for _, f := range envFiles {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := fileVals[k]; !ok {
				fileVals[k] = v
			}
		}
	}
	return configFrom(func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fileVals[key]
	})
}

// envReader 包装查找函数并收集第一个解析错误
type envReader struct {
	get func(string) string
	err error
}

func (r *envReader) strVar(key, def string) string {
	if v := strings.TrimSpace(r.get(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) intVar(key string, def int) int {
	v := strings.TrimSpace(r.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n
}

func (r *envReader) secondsVar(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.get(key))
	if v == "" {
		return def
	}
	return time.Duration(r.intVar(key, 0)) * time.Second
}

func (r *envReader) durationVar(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("environment variable %s must be a duration like 1h or 30m: %w", key, err)
	}
	return d
}

func (r *envReader) boolVar(key string, def bool) bool {
	v := strings.TrimSpace(r.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("environment variable %s must be a boolean: %w", key, err)
	}
	return b
}

func configFrom(get func(string) string) (*Config, error) {
	r := &envReader{get: get}
	cfg := &Config{
		AppEnv:     r.strVar("APP_ENV", "development"),
		ServerPort: r.strVar("SERVER_PORT", "8080"),
		LogLevel:   r.strVar("LOG_LEVEL", "info"),

		DBDriver:   strings.ToLower(r.strVar("DB_DRIVER", "mysql")),
		DBUser:     r.strVar("DB_USER", ""),
		DBPassword: get("DB_PASSWORD"),
		DBHost:     r.strVar("DB_HOST", "127.0.0.1"),
		DBPort:     r.strVar("DB_PORT", "3306"),
		DBName:     r.strVar("DB_NAME", "rooms_db"),
		SQLitePath: r.strVar("SQLITE_PATH", "rooms.db"),

		RedisAddr:     r.strVar("REDIS_ADDR", ""),
		RedisPassword: get("REDIS_PASSWORD"),
		RedisDB:       r.intVar("REDIS_DB", 0),
		KeyPrefix:     r.strVar("REDIS_KEY_PREFIX", "rooms:"),

		JWTSecret:      get("JWT_SECRET"),
		JWTExpiryHours: r.intVar("JWT_EXPIRY_HOURS", 24*30),

		CORSAllowedOrigins: splitList(r.strVar("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitMax:       r.intVar("RATE_LIMIT_MAX", 100),
		RateLimitWindow:    r.secondsVar("RATE_LIMIT_WINDOW_SECONDS", time.Second),

		PresenceGrace:     r.secondsVar("PRESENCE_GRACE_SECONDS", 30*time.Second),
		PresenceBroadcast: r.secondsVar("PRESENCE_BROADCAST_SECONDS", 5*time.Second),

		RoundStaleAfter:   r.durationVar("ROUND_STALE_AFTER", time.Hour),
		RoundResetEvery:   r.durationVar("ROUND_RESET_EVERY", 21*24*time.Hour),
		ChatRetention:     r.durationVar("CHAT_RETENTION", 24*time.Hour),
		StrokeRetention:   r.durationVar("STROKE_RETENTION", 24*time.Hour),
		RoomIdleAfter:     r.durationVar("ROOM_IDLE_AFTER", 21*24*time.Hour),
		WorkerConcurrency: r.intVar("WORKER_CONCURRENCY", 2),
		SweepOnStart:      r.boolVar("RETENTION_SWEEP_ON_START", true),
	}
	if r.err != nil {
		return nil, r.err
	}

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.DBDriver {
	case "mysql":
		if cfg.DBUser == "" {
			return nil, fmt.Errorf("environment variable DB_USER must be set when DB_DRIVER=mysql")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want mysql or sqlite)", cfg.DBDriver)
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW_SECONDS must be positive")
	}
	for key, d := range map[string]time.Duration{
		"PRESENCE_GRACE_SECONDS":     cfg.PresenceGrace,
		"PRESENCE_BROADCAST_SECONDS": cfg.PresenceBroadcast,
		"ROUND_STALE_AFTER":          cfg.RoundStaleAfter,
		"ROUND_RESET_EVERY":          cfg.RoundResetEvery,
		"CHAT_RETENTION":             cfg.ChatRetention,
		"STROKE_RETENTION":           cfg.StrokeRetention,
		"ROOM_IDLE_AFTER":            cfg.RoomIdleAfter,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("environment variable %s must be positive", key)
		}
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
