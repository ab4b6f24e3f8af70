package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"metaspace/auth"
	"metaspace/server"
	"metaspace/store"
)

// metaspace realtime server: accepts websocket clients into per-space rooms and relays
// presence and movement between them.
func main() {
	// .env is optional
	envErr := godotenv.Load()

	cfg := parseFlags()
	if err := server.InitLogger(server.LogOptions{File: cfg.LogFile, Level: cfg.LogLevel, JSON: cfg.LogJSON}); err != nil {
		panic(err)
	}
	defer server.SyncLogger()
	if envErr != nil && !os.IsNotExist(envErr) {
		server.Log.Warnf("loading .env: %v", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifier, err := auth.NewJWTVerifier(auth.Options{Secret: []byte(cfg.JWTSecret), Alg: cfg.JWTAlgorithm})
	if err != nil {
		server.Log.Fatalf("jwt: %v", err)
	}

	static, err := store.ParseSpaces(cfg.StaticSpaces)
	if err != nil {
		server.Log.Fatalf("static spaces: %v", err)
	}
	spaces := store.Chain{store.NewMemorySpaces(static...)}

	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			server.Log.Fatalf("postgres: %v", err)
		}
		defer pg.Close()
		spaces = append(spaces, pg)
	}

	deps := server.Deps{Verifier: verifier, Spaces: spaces}
	if cfg.RedisAddr != "" {
		rdb, err := store.OpenRedis(ctx, store.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			server.Log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		deps.Spaces = store.NewCachedSpaces(spaces, rdb, cfg.SpaceCacheTTL)
		deps.Presence = store.NewRedisPresence(rdb, cfg.PresenceTTL)
	}

	gw := server.NewGateway(cfg, deps)
	go gw.RunPresenceRefresher(ctx, cfg.PresenceRefresh)

	srv := &http.Server{Addr: cfg.Addr, Handler: gw.Routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		server.Log.Infof("metaspace realtime listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	server.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// hijacked websocket connections are not tracked by http.Server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnf("http shutdown: %v", err)
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnf("gateway shutdown: %v", err)
	}
}

func parseFlags() server.Config {
	d := server.DefaultConfig()
	cfg := d

	flag.StringVar(&cfg.Addr, "addr", env("METASPACE_ADDR", d.Addr), "listen address, e.g. :3001")
	flag.StringVar(&cfg.LogFile, "log-file", env("METASPACE_LOG_FILE", ""), "log file (rolled); empty logs to stdout")
	flag.StringVar(&cfg.LogLevel, "log-level", env("METASPACE_LOG_LEVEL", d.LogLevel), "debug|info|warn|error")
	flag.BoolVar(&cfg.LogJSON, "log-json", envBool("METASPACE_LOG_JSON", false), "JSON log lines")

	flag.StringVar(&cfg.JWTSecret, "jwt-secret", env("JWT_SECRET", d.JWTSecret), "HMAC secret shared with the HTTP API")
	flag.StringVar(&cfg.JWTAlgorithm, "jwt-alg", env("JWT_ALG", d.JWTAlgorithm), "HS256|HS384|HS512")

	flag.StringVar(&cfg.DatabaseURL, "database-url", env("DATABASE_URL", ""), "postgres URL for space lookups")
	flag.StringVar(&cfg.StaticSpaces, "spaces", env("METASPACE_SPACES", ""), "static spaces, id=WxH,id2=WxH")

	flag.StringVar(&cfg.RedisAddr, "redis-addr", env("REDIS_ADDR", ""), "redis address for space cache and presence")
	flag.StringVar(&cfg.RedisPassword, "redis-password", env("REDIS_PASSWORD", ""), "redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", envInt("REDIS_DB", 0), "redis database")
	flag.DurationVar(&cfg.SpaceCacheTTL, "space-cache-ttl", envDuration("METASPACE_SPACE_CACHE_TTL", d.SpaceCacheTTL), "space lookup cache lifetime")
	flag.DurationVar(&cfg.PresenceTTL, "presence-ttl", envDuration("METASPACE_PRESENCE_TTL", d.PresenceTTL), "presence entry lifetime")
	flag.DurationVar(&cfg.PresenceRefresh, "presence-refresh", envDuration("METASPACE_PRESENCE_REFRESH", d.PresenceRefresh), "presence refresh period")

	flag.IntVar(&cfg.MaxStep, "max-step", envInt("METASPACE_MAX_STEP", d.MaxStep), "max tiles per movement step")
	flag.IntVar(&cfg.SendBuffer, "send-buffer", envInt("METASPACE_SEND_BUFFER", d.SendBuffer), "outbound frames queued per client before it is disconnected")
	flag.Int64Var(&cfg.MaxFrameBytes, "max-frame", int64(envInt("METASPACE_MAX_FRAME", int(d.MaxFrameBytes))), "max inbound frame size in bytes")
	flag.DurationVar(&cfg.JoinTimeout, "join-timeout", envDuration("METASPACE_JOIN_TIMEOUT", d.JoinTimeout), "close connections that do not join in time; 0 disables")
	flag.Float64Var(&cfg.RateLimit, "rate", d.RateLimit, "inbound frames per second per client; 0 disables")
	flag.IntVar(&cfg.RateBurst, "burst", d.RateBurst, "inbound burst per client")
	origins := flag.String("origins", env("METASPACE_ORIGINS", ""), "comma separated allowed origins; empty allows all")
	flag.Parse()

	for _, o := range strings.Split(*origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
