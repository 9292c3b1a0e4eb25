// Package casregistry links block store backends into binaries. A backend
// package registers itself from init and is enabled by importing it:
//
//	import _ "xdao.co/dagfs/storage/badgercas"
package casregistry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/pflag"

	"xdao.co/dagfs/storage"
)

var (
	ErrUnknownBackend = errors.New("casregistry: unknown backend")
	ErrUnsupported    = errors.New("casregistry: backend not supported here")
)

// OpenFunc opens a backend and returns an optional close function.
type OpenFunc func() (storage.CAS, func() error, error)

// Backend describes one registered block store implementation.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds the backend's flags. Called once per flag set.
	RegisterFlags func(fs *pflag.FlagSet)

	// Open builds the store from the values bound by RegisterFlags.
	Open OpenFunc

	// OpenWithConfig builds the store from settings keyed like the flags.
	// Backends without it cannot appear in a casconfig file.
	OpenWithConfig func(cfg map[string]string) (storage.CAS, func() error, error)
}

func (b Backend) validate() error {
	switch {
	case b.Name == "":
		return errors.New("casregistry: backend name is required")
	case b.RegisterFlags == nil:
		return fmt.Errorf("casregistry: backend %q missing RegisterFlags", b.Name)
	case b.Open == nil:
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	case b.Usage == 0:
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}
	return nil
}

// Registry is a set of backends keyed by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Default holds every backend registered from init.
var Default = NewRegistry()

func (r *Registry) Register(b Backend) error {
	if err := b.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[b.Name]; ok {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	r.backends[b.Name] = b
	return nil
}

// List returns the backends allowed for usage, sorted by name.
func (r *Registry) List(usage Usage) []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Backend
	for _, b := range r.backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) lookup(name string, usage Usage) (Backend, error) {
	r.mu.RLock()
	b, ok := r.backends[name]
	r.mu.RUnlock()
	if !ok {
		return Backend{}, fmt.Errorf("%w %q", ErrUnknownBackend, name)
	}
	if !b.Usage.allows(usage) {
		return Backend{}, fmt.Errorf("%w: %q in %s", ErrUnsupported, name, usage)
	}
	return b, nil
}

func (r *Registry) Open(name string, usage Usage) (storage.CAS, func() error, error) {
	b, err := r.lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return b.Open()
}

func (r *Registry) OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.CAS, func() error, error) {
	b, err := r.lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	if b.OpenWithConfig == nil {
		return nil, nil, fmt.Errorf("%w: %q cannot be opened from a config file", ErrUnsupported, name)
	}
	return b.OpenWithConfig(cfg)
}

// Register adds b to Default.
func Register(b Backend) error { return Default.Register(b) }

// MustRegister is Register for init functions.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

func List(usage Usage) []Backend { return Default.List(usage) }

// Names lists the names of Default's backends allowed for usage.
func Names(usage Usage) []string {
	var names []string
	for _, b := range List(usage) {
		names = append(names, b.Name)
	}
	return names
}

// RegisterFlags binds the flags of every Default backend allowed for usage.
func RegisterFlags(fs *pflag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

func Open(name string, usage Usage) (storage.CAS, func() error, error) {
	return Default.Open(name, usage)
}

func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.CAS, func() error, error) {
	return Default.OpenWithConfig(name, usage, cfg)
}
