package memcas

import (
	"github.com/spf13/pflag"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:          "memory",
		Description:   "In-memory CAS (process lifetime only)",
		Usage:         casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(*pflag.FlagSet) {},
		Open: func() (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
		OpenWithConfig: func(map[string]string) (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
	})
}
