package config

import (
	"os"
	"strconv"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/joho/godotenv"
	"github.com/playmatatu/poolphys/internal/physics"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool
	MigrationsDir  string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Table sessions
	SessionTTLMinutes   int
	IdleSweepSeconds    int
	FrameBroadcastEvery int // stream every Nth frame over websocket, 0 disables

	// Physics
	GravityY          float64
	AirResistance     float64
	VelocityThreshold float64
	TimeStepHz        int
	MaxEntities       int
	RejectNaNContacts bool

	// Security
	JWTSecret      string
	TokenTTLMinute int

	// guards the physics fields against runtime overrides
	mu sync.RWMutex
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/poolphys?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "migrations"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Table sessions
		SessionTTLMinutes:   getEnvInt("SESSION_TTL_MINUTES", 30),
		IdleSweepSeconds:    getEnvInt("IDLE_SWEEP_SECONDS", 60),
		FrameBroadcastEvery: getEnvInt("FRAME_BROADCAST_EVERY", 2),

		// Physics
		GravityY:          getEnvFloat("PHYS_GRAVITY_Y", -9.8),
		AirResistance:     getEnvFloat("PHYS_AIR_RESISTANCE", 0.3),
		VelocityThreshold: getEnvFloat("PHYS_VELOCITY_THRESHOLD", 0.075),
		TimeStepHz:        getEnvInt("PHYS_TIMESTEP_HZ", 120),
		MaxEntities:       getEnvInt("PHYS_MAX_ENTITIES", physics.DefaultMaxEntities),
		RejectNaNContacts: getEnvBool("PHYS_REJECT_NAN_CONTACTS", false),

		// Security
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTLMinute: getEnvInt("TOKEN_TTL_MINUTES", 60),
	}
}

// Physics converts the PHYS_* settings into a world configuration. A nil
// config yields the engine defaults.
func (c *Config) Physics() physics.Config {
	pc := physics.DefaultConfig()
	if c == nil {
		return pc
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	pc.Gravity = mgl64.Vec3{0, c.GravityY, 0}
	pc.AirResistance = c.AirResistance
	pc.VelocityThreshold = c.VelocityThreshold
	if c.TimeStepHz > 0 {
		pc.TimeStep = 1.0 / float64(c.TimeStepHz)
	}
	if c.MaxEntities > 0 {
		pc.MaxEntities = c.MaxEntities
	}
	pc.RejectNaNContacts = c.RejectNaNContacts
	return pc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
