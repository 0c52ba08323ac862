package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestConfigFrom_Defaults(t *testing.T) {
	cfg, err := configFrom(mapEnv(map[string]string{
		"REDIS_ADDR": "localhost:6379",
		"JWT_SECRET": "s3cret",
		"DB_USER":    "rooms",
	}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "rooms_db", cfg.DBName)
	assert.Equal(t, "rooms:", cfg.KeyPrefix)
	assert.Equal(t, 720, cfg.JWTExpiryHours)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Second, cfg.PresenceGrace)
	assert.Equal(t, 5*time.Second, cfg.PresenceBroadcast)
	assert.Equal(t, time.Hour, cfg.RoundStaleAfter)
	assert.Equal(t, 504*time.Hour, cfg.RoundResetEvery)
	assert.Equal(t, 24*time.Hour, cfg.ChatRetention)
	assert.Equal(t, 24*time.Hour, cfg.StrokeRetention)
	assert.Equal(t, 504*time.Hour, cfg.RoomIdleAfter)
	assert.True(t, cfg.SweepOnStart)
}

func TestConfigFrom_Overrides(t *testing.T) {
	cfg, err := configFrom(mapEnv(map[string]string{
		"APP_ENV":                  "production",
		"REDIS_ADDR":               "redis:6379",
		"JWT_SECRET":               "s3cret",
		"DB_DRIVER":                "SQLite",
		"SQLITE_PATH":              "/data/rooms.db",
		"CORS_ALLOWED_ORIGINS":     "https://a.example, https://b.example ,",
		"PRESENCE_GRACE_SECONDS":   "45",
		"ROUND_STALE_AFTER":        "90m",
		"RETENTION_SWEEP_ON_START": "false",
		"LOG_LEVEL":                "loud",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/data/rooms.db", cfg.SQLitePath)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 45*time.Second, cfg.PresenceGrace)
	assert.Equal(t, 90*time.Minute, cfg.RoundStaleAfter)
	assert.False(t, cfg.SweepOnStart)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfigFrom_Errors(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{"REDIS_ADDR": "r:6379", "JWT_SECRET": "s", "DB_USER": "u"}
	}
	cases := map[string]func(m map[string]string){
		"missing redis":      func(m map[string]string) { delete(m, "REDIS_ADDR") },
		"missing secret":     func(m map[string]string) { delete(m, "JWT_SECRET") },
		"mysql without user": func(m map[string]string) { delete(m, "DB_USER") },
		"unknown driver":     func(m map[string]string) { m["DB_DRIVER"] = "postgres" },
		"bad int":            func(m map[string]string) { m["RATE_LIMIT_MAX"] = "many" },
		"bad duration":       func(m map[string]string) { m["CHAT_RETENTION"] = "a day" },
		"zero duration":      func(m map[string]string) { m["ROOM_IDLE_AFTER"] = "0s" },
		"bad bool":           func(m map[string]string) { m["RETENTION_SWEEP_ON_START"] = "maybe" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := base()
			mutate(m)
			_, err := configFrom(mapEnv(m))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_EnvFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_ADDR=file:6379\nJWT_SECRET=from-file\nDB_DRIVER=sqlite\nSERVER_PORT=9000\n"), 0o600))
	for _, k := range []string{"REDIS_ADDR", "JWT_SECRET", "DB_DRIVER"} {
		t.Setenv(k, "")
	}
	t.Setenv("SERVER_PORT", "9100")

	cfg, err := LoadConfig(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "file:6379", cfg.RedisAddr)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "9100", cfg.ServerPort)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://rooms.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := preflight("https://rooms.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://rooms.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = preflight("https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
