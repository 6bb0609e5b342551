// Package config holds the read-only configuration contract between the
// CLI bootstrap and the core server: listen port, RDB location, and the
// optional primary this process replicates from.
package config

import "redisd/internal/types"

// ReplicaOf names the primary this process replicates from.
type ReplicaOf struct {
	Host string
	Port string
}

// Config is constructed once at startup and never mutated afterward;
// every subsystem that needs it receives a pointer to the same value.
type Config struct {
	Port       int
	Dir        string
	DBFilename string

	replicaOf types.Optional[ReplicaOf]
}

func DefaultConfig() *Config {
	return &Config{Port: 6379}
}

func (c *Config) SetReplicaOf(r ReplicaOf) {
	c.replicaOf = types.NewSome(r)
}

// ReplicaOf returns the configured primary and whether one was set.
func (c *Config) ReplicaOf() (ReplicaOf, bool) {
	if c.replicaOf == nil {
		return ReplicaOf{}, false
	}
	return c.replicaOf.Get(), true
}

// IsReplica reports whether this process should start in the secondary role.
func (c *Config) IsReplica() bool {
	_, ok := c.ReplicaOf()
	return ok
}

// RDBPath returns the path to preload from, if both Dir and DBFilename
// are configured.
func (c *Config) RDBPath() (string, bool) {
	if c.Dir == "" || c.DBFilename == "" {
		return "", false
	}
	return c.Dir + "/" + c.DBFilename, true
}
