package badgercas

import (
	"fmt"

	"github.com/spf13/pflag"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/casregistry"
)

var flagDir string

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "badger",
		Description: "Embedded badger key-value CAS",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagDir, "badger-dir", "", "Badger database directory (for --backend=badger)")
		},
		Open: func() (storage.CAS, func() error, error) {
			return open(flagDir)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.CAS, func() error, error) {
			return open(cfg["badger-dir"])
		},
	})
}

func open(dir string) (storage.CAS, func() error, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("missing --badger-dir")
	}
	cas, err := Open(dir)
	if err != nil {
		return nil, nil, err
	}
	return cas, cas.Close, nil
}
