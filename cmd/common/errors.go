package common

import "errors"

var (
	// ErrConfigRequired is returned when NewApp is given no configuration.
	ErrConfigRequired = errors.New("config is required")

	// ErrNoSources is returned when a command selects no source.
	ErrNoSources = errors.New("no sources selected")

	// ErrRedisUnavailable is returned by commands that need the Redis index.
	ErrRedisUnavailable = errors.New("redis index is disabled or unreachable")
)
