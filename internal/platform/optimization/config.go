// Package optimization provides concurrency tuning for high load.
package optimization

import (
	"runtime"
)

// Config holds tuned parameters for high-load scenarios.
type Config struct {
	// Channel buffer sizes
	SubscriberBuffer int
	ClientSendBuffer int

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int
	RedisPoolSize  int

	// Rate limiting
	MaxActionsPerSecond int
	MaxLobbiesPerServer int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		SubscriberBuffer: 64,  // Snapshot bursts during enemy turns
		ClientSendBuffer: 256, // Per WebSocket

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,
		RedisPoolSize:  numCPU * 2,

		MaxActionsPerSecond: 10, // Per client; the turn clock caps real play far below this
		MaxLobbiesPerServer: 500,
	}
}

// StressTestConfig returns aggressive settings for load testing with
// the agitator.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		SubscriberBuffer: 256,
		ClientSendBuffer: 512,

		DBMaxOpenConns: numCPU * 8,
		DBMaxIdleConns: numCPU * 4,
		RedisPoolSize:  numCPU * 4,

		MaxActionsPerSecond: 100,
		MaxLobbiesPerServer: 2000,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		SubscriberBuffer: 16,
		ClientSendBuffer: 32,

		DBMaxOpenConns: 5,
		DBMaxIdleConns: 2,
		RedisPoolSize:  5,

		MaxActionsPerSecond: 5,
		MaxLobbiesPerServer: 20,
	}
}

// ForProfile maps a config profile name to its tuning set.
func ForProfile(profile string) *Config {
	switch profile {
	case "stress":
		return StressTestConfig()
	case "dev":
		return LowResourceConfig()
	default:
		return DefaultConfig()
	}
}
