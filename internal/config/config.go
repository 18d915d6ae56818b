// Package config loads the cluster daemon's environment-driven
// configuration (spec §6, SPEC_FULL §9).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

const (
	envDiscoveryPort       = "DISCOVERY_PORT"
	envMessageInterval     = "DISCOVERY_MESSAGE_INTERVAL"
	envMessageTimeout      = "DISCOVERY_MESSAGE_TIMEOUT"
	envPreElectionTimeout  = "DISCOVERY_PREELECTION_TIMEOUT"
	envProtocolVersion     = "DISCOVERY_PROTOCOL_VERSION"
	minSupportedConstraint = ">= 1.0"
)

// Load builds a types.Config from the process environment, falling
// back to types.DefaultConfig for anything unset. getenv is injected
// so tests can exercise this without mutating the real environment.
func Load(getenv func(string) string) (types.Config, error) {
	cfg := types.DefaultConfig()

	if v := getenv(envDiscoveryPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid %s: %w", envDiscoveryPort, err)
		}
		cfg.DiscoveryPort = port
	}

	if v := getenv(envMessageInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid %s: %w", envMessageInterval, err)
		}
		cfg.MessageInterval = d
	}

	if v := getenv(envMessageTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid %s: %w", envMessageTimeout, err)
		}
		cfg.MessageTimeout = d
	}

	if v := getenv(envPreElectionTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid %s: %w", envPreElectionTimeout, err)
		}
		cfg.PreElectionTimeout = d
	}

	if v := getenv(envProtocolVersion); v != "" {
		if err := validateProtocolVersion(v); err != nil {
			return cfg, err
		}
		cfg.ProtocolVersion = v
	}

	return cfg, nil
}

// validateProtocolVersion rejects a protocol version the binary can't
// speak. It is opt-in: an empty DISCOVERY_PROTOCOL_VERSION skips this
// entirely (spec's protocol version field is otherwise unconstrained).
func validateProtocolVersion(v string) error {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s %q: %w", envProtocolVersion, v, err)
	}
	constraint, err := version.NewConstraint(minSupportedConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(parsed) {
		return fmt.Errorf("config: %s %q does not satisfy %s", envProtocolVersion, v, minSupportedConstraint)
	}
	return nil
}

// FromEnviron is a convenience wrapper around Load using os.Getenv.
func FromEnviron() (types.Config, error) {
	return Load(os.Getenv)
}
