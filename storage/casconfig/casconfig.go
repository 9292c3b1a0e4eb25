// Package casconfig opens a composite block store from a YAML description.
//
//	write_policy: all
//	cache_ttl: 5m
//	backends:
//	  - name: localfs
//	    config: {localfs-dir: /tmp/blocks}
//	  - name: badger
//	    config: {badger-dir: /tmp/badger}
//
// JSON documents are accepted too, being a subset of YAML. Backend config
// keys mirror the backend's flag names.
package casconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/casregistry"
)

// WritePolicy selects how Puts fan out over the backends.
type WritePolicy string

const (
	// WriteFirst writes to the first backend; reads fall back in order.
	WriteFirst WritePolicy = "first"
	// WriteAll writes to every backend and requires identical CIDs.
	WriteAll WritePolicy = "all"
)

type Config struct {
	WritePolicy WritePolicy     `yaml:"write_policy,omitempty" json:"write_policy,omitempty"`
	Backends    []BackendConfig `yaml:"backends" json:"backends"`
	// ReadRepair copies blocks read from later backends into the first one.
	// Only meaningful with WriteFirst.
	ReadRepair bool `yaml:"read_repair,omitempty" json:"read_repair,omitempty"`
	// CacheTTL, when set, puts a read cache in front of the whole store.
	CacheTTL string `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
}

type BackendConfig struct {
	// Name is the registered backend to open, e.g. "localfs" or "grpc".
	Name string `yaml:"name" json:"name"`
	// ID distinguishes several instances of one backend. Defaults to Name.
	ID     string            `yaml:"id,omitempty" json:"id,omitempty"`
	Config map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// LoadFile reads and parses path from fs. A nil fs means the OS filesystem.
func LoadFile(fs afero.Fs, path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("casconfig: empty config path")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("casconfig: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a config document. Unknown keys are errors.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, fmt.Errorf("casconfig: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if seen[b.id()] {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = true
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
	if c.CacheTTL != "" {
		if _, err := time.ParseDuration(c.CacheTTL); err != nil {
			return fmt.Errorf("casconfig: cache_ttl: %w", err)
		}
	}
	return nil
}

// Contains reports whether a backend with this name or id is configured.
func (c Config) Contains(nameOrID string) bool {
	return c.indexOf(nameOrID) >= 0
}

func (c Config) indexOf(nameOrID string) int {
	for i, b := range c.Backends {
		if b.Name == nameOrID || b.ID == nameOrID {
			return i
		}
	}
	return -1
}

// Open opens every backend and composes them per the write policy. A
// non-empty preferred backend is moved to the front, which makes it the
// write target under WriteFirst.
func (c Config) Open(usage casregistry.Usage, preferred string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		i := c.indexOf(preferred)
		if i < 0 {
			return nil, nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
		}
		ordered = append(append([]BackendConfig{ordered[i]}, ordered[:i]...), ordered[i+1:]...)
	}

	var closers []func() error
	closeAll := func() error {
		var err error
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
		return err
	}

	named := make([]storage.NamedCAS, 0, len(ordered))
	for _, b := range ordered {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			return nil, nil, multierr.Append(fmt.Errorf("casconfig: %s: %w", b.id(), err), closeAll())
		}
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
	}

	var cas storage.CAS
	switch {
	case len(named) == 1:
		cas = named[0].CAS
	case c.WritePolicy == WriteAll:
		cas = storage.ReplicatingCAS{Backends: named}
	default:
		m := storage.MultiCAS{ReadRepair: c.ReadRepair}
		for _, n := range named {
			m.Adapters = append(m.Adapters, n.CAS)
		}
		cas = m
	}
	if c.CacheTTL != "" {
		ttl, _ := time.ParseDuration(c.CacheTTL)
		cas = storage.NewCached(cas, ttl)
	}
	return cas, closeAll, nil
}
