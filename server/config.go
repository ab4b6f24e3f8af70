package server

import "time"

// Config holds every tunable of the realtime server. Zero values are replaced by DefaultConfig's.
type Config struct {
	Addr     string
	LogFile  string
	LogLevel string
	LogJSON  bool

	JWTSecret    string
	JWTAlgorithm string

	DatabaseURL  string
	StaticSpaces string // "id=WxH,id2=WxH"

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SpaceCacheTTL   time.Duration
	PresenceTTL     time.Duration
	PresenceRefresh time.Duration

	MaxStep int

	SendBuffer     int
	MaxFrameBytes  int64
	JoinTimeout    time.Duration
	RateLimit      float64 // inbound frames per second, 0 disables
	RateBurst      int
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":3001",
		LogLevel:        "info",
		JWTSecret:       "secret",
		JWTAlgorithm:    "HS256",
		SpaceCacheTTL:   30 * time.Second,
		PresenceTTL:     90 * time.Second,
		PresenceRefresh: 30 * time.Second,
		MaxStep:         1,
		SendBuffer:      64,
		MaxFrameBytes:   4 << 10,
		JoinTimeout:     30 * time.Second,
		RateLimit:       30,
		RateBurst:       60,
	}
}

// withDefaults fills the fields the gateway cannot run without.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxStep <= 0 {
		c.MaxStep = d.MaxStep
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = int(c.RateLimit)
		if c.RateBurst < 1 {
			c.RateBurst = 1
		}
	}
	return c
}
