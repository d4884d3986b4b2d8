package global

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	GatewayID  string
	ListenAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI string
	MongoDB  string

	NatsURL      string
	KafkaBrokers []string
	ArchiveTopic string

	JWTSecret string

	// StepTimeout bounds each oracle/persist/publish call inside frame
	// processing so a stuck collaborator cannot hang the connection.
	StepTimeout time.Duration

	PresenceTTL time.Duration
}

func Load() Config {
	return Config{
		GatewayID:     envOr("GATEWAY_ID", "push_gw-1"),
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		RedisAddr:     envOr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		MongoURI:      envOr("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:       envOr("MONGO_DB", "marketplace"),
		NatsURL:       envOr("NATS_URL", "nats://127.0.0.1:4222"),
		KafkaBrokers:  envList("KAFKA_BROKERS", nil),
		ArchiveTopic:  envOr("KAFKA_ARCHIVE_TOPIC", "chat.messages.delivered"),
		JWTSecret:     envOr("JWT_SECRET", "dev-secret-change-me"),
		StepTimeout:   envDuration("STEP_TIMEOUT", 5*time.Second),
		PresenceTTL:   envDuration("PRESENCE_TTL", 90*time.Second),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
