package utils

import (
	"os"
	"strconv"
	"time"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("CHAPTERWATCH_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("CHAPTERWATCH_JWT_ISSUER")
	if issuer == "" {
		issuer = "chapterwatch"
	}

	hours := envInt("CHAPTERWATCH_JWT_TTL_HOURS", 24)
	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: time.Duration(hours) * time.Hour,
	}
}

// ServerConfig holds the listen addresses and the upstream API base.
type ServerConfig struct {
	HTTPAddr string
	TCPAddr  string
	UDPAddr  string
	APIBase  string
}

func LoadServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr: envStr("CHAPTERWATCH_HTTP_ADDR", ":8080"),
		TCPAddr:  envStr("CHAPTERWATCH_TCP_ADDR", ":7070"),
		UDPAddr:  envStr("CHAPTERWATCH_UDP_ADDR", ":9090"),
		APIBase:  envStr("CHAPTERWATCH_API_BASE", "https://api.mangadex.org"),
	}
}

// ResolveConfig holds the retry and concurrency tunables for chapter
// resolution. Defaults match the documented backoff schedule: short
// retries inside the resolver (1s, 2s) and long session retries
// growing 5s .. 160s before an item settles as unknown.
type ResolveConfig struct {
	Concurrency    int
	ShortRetries   int
	ShortBase      time.Duration
	LongRetryMax   int
	LongBase       time.Duration
	AttemptTimeout time.Duration
}

func LoadResolveConfig() ResolveConfig {
	return ResolveConfig{
		Concurrency:    envInt("CHAPTERWATCH_CONCURRENCY", 6),
		ShortRetries:   envInt("CHAPTERWATCH_SHORT_RETRIES", 3),
		ShortBase:      envDuration("CHAPTERWATCH_SHORT_BASE", time.Second),
		LongRetryMax:   envInt("CHAPTERWATCH_LONG_RETRY_MAX", 6),
		LongBase:       envDuration("CHAPTERWATCH_LONG_BASE", 5*time.Second),
		AttemptTimeout: envDuration("CHAPTERWATCH_ATTEMPT_TIMEOUT", 10*time.Second),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
