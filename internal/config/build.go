package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shalu066900/pykms/internal/dispatch"
	"github.com/shalu066900/pykms/internal/epid"
	"github.com/shalu066900/pykms/internal/identity"
	"github.com/shalu066900/pykms/internal/server"
	"github.com/shalu066900/pykms/internal/store"
)

// ToServerConfig builds the internal/server.Config the Config's Server
// section describes.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Addresses:      c.Server.Addresses,
		MaxConnections: c.Server.MaxConnections,
		Timeouts: server.TimeoutsConfig{
			Read:     c.Server.ReadTimeout,
			Idle:     c.Server.IdleTimeout,
			Shutdown: c.Server.ShutdownTimeout,
		},
	}
}

// ToDispatchConfig builds the internal/dispatch.Config the Config's
// Crypto section describes, wired to real randomness and the system
// clock.
func (c *Config) ToDispatchConfig() dispatch.Config {
	return dispatch.Config{
		ActivationIntervalMinutes: c.Crypto.ActivationIntervalMinutes,
		RenewalIntervalMinutes:    c.Crypto.RenewalIntervalMinutes,
		RNG:                       rand.Reader,
		Now:                       time.Now,
	}
}

// BuildIdentity resolves the configured (or freshly generated) HWID and
// constructs the process-wide ServerIdentity (spec.md §4.5, §9).
func (c *Config) BuildIdentity() (*identity.ServerIdentity, error) {
	var override []byte
	if c.Crypto.HwidOverrideHex != "" {
		decoded, err := hex.DecodeString(c.Crypto.HwidOverrideHex)
		if err != nil {
			return nil, fmt.Errorf("config: decode hwid_override_hex: %w", err)
		}
		override = decoded
	}
	hwid, err := epid.HWID(override)
	if err != nil {
		return nil, fmt.Errorf("config: resolve hwid: %w", err)
	}
	return identity.New(hwid, c.Crypto.EpidOverride, c.Crypto.ReportedClientCount, c.Crypto.MaxClients), nil
}

// BuildStore opens the ClientStore backend named by Database.Driver.
func (c *Config) BuildStore() (store.ClientStore, error) {
	switch c.Database.Driver {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		st, err := store.OpenSQLiteStore(c.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("config: open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
}
