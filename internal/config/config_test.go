package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("unexpected API base path from MustLoad: %q", cfg.APIBasePath)
	}
}

// --- Load defaults ---

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "  123:abc  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bot.Token != "123:abc" || cfg.Bot.OwnerID != 0 || cfg.Bot.SudoUsers != nil {
		t.Fatalf("bot defaults unexpected: %+v", cfg.Bot)
	}
	if cfg.Bot.PollTimeout != 60*time.Second || cfg.Bot.Debug {
		t.Fatalf("poll defaults unexpected: %+v", cfg.Bot)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.DBPath != "fallen.db" {
		t.Fatalf("store defaults unexpected: %+v", cfg.Store)
	}
	if cfg.Requests != (RequestConfig{Cooldown: 300 * time.Second, MaxPending: 5, ListLimit: 10}) {
		t.Fatalf("request defaults unexpected: %+v", cfg.Requests)
	}
	if cfg.Upstream.AniListURL != "https://graphql.anilist.co" || cfg.Upstream.AniListTimeout != 8*time.Second {
		t.Fatalf("anilist defaults unexpected: %+v", cfg.Upstream)
	}
	if cfg.Upstream.NekosURL != "https://nekos.best/api/v2" {
		t.Fatalf("nekos default unexpected: %q", cfg.Upstream.NekosURL)
	}
	if cfg.Upstream.QuotesURL != "https://animechan.io/api/v1" || cfg.Upstream.QuotesTimeout != 10*time.Second {
		t.Fatalf("animechan defaults unexpected: %+v", cfg.Upstream)
	}
	if !cfg.OpsEnabled || cfg.Port != "8080" || cfg.GinMode != "release" {
		t.Fatalf("ops defaults unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.LogPretty {
		t.Fatalf("logging defaults unexpected: %+v", cfg)
	}
	if cfg.OTEL.ServiceName != "fallenbot" || cfg.OTEL.Enabled {
		t.Fatalf("otel defaults unexpected: %+v", cfg.OTEL)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_Overrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "42:xyz")
	t.Setenv("BOT_API_ENDPOINT", "http://bot-api:8081/bot%s/%s")
	t.Setenv("OWNER_ID", "1001")
	t.Setenv("SUDO_USERS", "2002, 3003 4004")
	t.Setenv("POLL_TIMEOUT", "30")
	t.Setenv("BOT_DEBUG", "yes")

	t.Setenv("STORE_BACKEND", "Mongo") // legacy alias -> redis
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("REDIS_PREFIX", "bot")

	t.Setenv("REQUEST_COOLDOWN", "2m")
	t.Setenv("MAX_PENDING_PER_USER", "3")
	t.Setenv("LIST_LIMIT", "x") // -> default 10

	t.Setenv("ANILIST_URL", "http://anilist.local")
	t.Setenv("ANILIST_TIMEOUT", "2s")
	t.Setenv("ANIMECHAN_URL", "http://quotes.local/v1")
	t.Setenv("ANIMECHAN_TIMEOUT", "3s")

	t.Setenv("RATE_RPS", "0.5")
	t.Setenv("RATE_BURST", "nope") // -> default 5

	t.Setenv("OPS_PORT", "9090")
	t.Setenv("GIN_MODE", "weird")     // -> release
	t.Setenv("API_BASE_PATH", "api/") // -> /api
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("LOG_LEVEL", "warning") // -> warn
	t.Setenv("LOG_PRETTY", "on")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Bot.OwnerID != 1001 || !reflect.DeepEqual(cfg.Bot.SudoUsers, []int64{2002, 3003, 4004}) {
		t.Fatalf("bot users unexpected: %+v", cfg.Bot)
	}
	if cfg.Bot.PollTimeout != 30*time.Second || !cfg.Bot.Debug || cfg.Bot.APIEndpoint == "" {
		t.Fatalf("bot fields unexpected: %+v", cfg.Bot)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Store.RedisURL != "redis://cache:6379/2" || cfg.Store.RedisPrefix != "bot" {
		t.Fatalf("store fields unexpected: %+v", cfg.Store)
	}
	if cfg.Requests.Cooldown != 2*time.Minute || cfg.Requests.MaxPending != 3 || cfg.Requests.ListLimit != 10 {
		t.Fatalf("request fields unexpected: %+v", cfg.Requests)
	}
	if cfg.Upstream.AniListURL != "http://anilist.local" || cfg.Upstream.AniListTimeout != 2*time.Second {
		t.Fatalf("upstream fields unexpected: %+v", cfg.Upstream)
	}
	if cfg.Upstream.QuotesURL != "http://quotes.local/v1" || cfg.Upstream.QuotesTimeout != 3*time.Second {
		t.Fatalf("animechan fields unexpected: %+v", cfg.Upstream)
	}
	if cfg.RateRPS != 0.5 || cfg.RateBurst != 5 {
		t.Fatalf("rate limiting unexpected: %v / %v", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.Port != "9090" || cfg.GinMode != "release" || cfg.APIBasePath != "/api" {
		t.Fatalf("ops fields unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"missing token", "BOT_TOKEN", "   ", "BOT_TOKEN"},
		{"bad sudo id", "SUDO_USERS", "12,abc", "SUDO_USERS"},
		{"short poll", "POLL_TIMEOUT", "100ms", "POLL_TIMEOUT"},
		{"unknown backend", "STORE_BACKEND", "etcd", "STORE_BACKEND"},
		{"empty DB_PATH", "DB_PATH", "   ", "DB_PATH must not be empty"},
		{"negative cooldown", "REQUEST_COOLDOWN", "-1s", "REQUEST_COOLDOWN"},
		{"zero pending cap", "MAX_PENDING_PER_USER", "0", "MAX_PENDING_PER_USER"},
		{"zero list limit", "LIST_LIMIT", "0", "LIST_LIMIT"},
		{"zero anilist timeout", "ANILIST_TIMEOUT", "0s", "upstream timeouts"},
		{"zero animechan timeout", "ANIMECHAN_TIMEOUT", "0s", "upstream timeouts"},
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"empty port", "OPS_PORT", "   ", "OPS_PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"max header bytes", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"hsts max age negative", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "0s", "SHUTDOWN_TIMEOUT"},
		{"otel sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", "123:abc")
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}

	t.Run("empty REDIS_URL with redis backend", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "123:abc")
		t.Setenv("STORE_BACKEND", "redis")
		t.Setenv("REDIS_URL", " ")
		if _, err := Load(); !containsErr(err, "REDIS_URL") {
			t.Fatalf("expected REDIS_URL validation error, got: %v", err)
		}
	})
}

func TestBotConfig_IsSudo(t *testing.T) {
	b := BotConfig{OwnerID: 1, SudoUsers: []int64{2, 3}}
	for id, want := range map[int64]bool{0: false, 1: true, 2: true, 3: true, 4: false} {
		if got := b.IsSudo(id); got != want {
			t.Errorf("IsSudo(%d) = %v; want %v", id, got, want)
		}
	}
	if (BotConfig{}).IsSudo(0) {
		t.Fatalf("zero user must never be sudo")
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_numbers_and_durations(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I64_VALID", " -1001234567890 ")
	if getint64("I64_VALID", 0) != -1001234567890 {
		t.Fatalf("getint64 parse failed")
	}
	t.Setenv("I64_BAD", "x")
	if getint64("I64_BAD", 7) != 7 {
		t.Fatalf("getint64 default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_SECONDS", "300")
	if getdur("D_SECONDS", time.Second) != 300*time.Second {
		t.Fatalf("getdur bare seconds failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		k := "B_T_" + string(rune('a'+i))
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for i, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		k := "B_F_" + string(rune('a'+i))
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if out := splitCSV(" , ,"); out != nil {
		t.Fatalf("splitCSV separators only should return nil, got %#v", out)
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}
	if ids, err := splitInt64CSV("1 2,3"); err != nil || !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Fatalf("splitInt64CSV = %v, %v", ids, err)
	}

	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
}

// Ensure tests don't pick up a developer's environment.
func TestMain(m *testing.M) {
	for _, k := range []string{"BOT_TOKEN", "PORT", "OPS_PORT", "STORE_BACKEND", "SUDO_USERS", "OWNER_ID"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
