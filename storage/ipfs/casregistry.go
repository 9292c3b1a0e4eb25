package ipfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/casregistry"
)

var (
	flagBin      string
	flagIPFSPath string
	flagPin      bool
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repo via the ipfs CLI (offline)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "ipfs", "Path to the ipfs binary (for --backend=ipfs)")
			fs.StringVar(&flagIPFSPath, "ipfs-path", "", "IPFS_PATH for the repo; empty uses the process environment (for --backend=ipfs)")
			fs.BoolVar(&flagPin, "ipfs-pin", false, "Pin every stored block (for --backend=ipfs)")
		},
		Open: func() (storage.CAS, func() error, error) {
			return open(flagBin, flagIPFSPath, flagPin)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.CAS, func() error, error) {
			pin, err := parseBool(cfg["ipfs-pin"])
			if err != nil {
				return nil, nil, fmt.Errorf("ipfs-pin: %w", err)
			}
			return open(cfg["ipfs-bin"], cfg["ipfs-path"], pin)
		},
	})
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func open(bin, ipfsPath string, pin bool) (storage.CAS, func() error, error) {
	opts := Options{Bin: strings.TrimSpace(bin), Pin: pin}
	if p := strings.TrimSpace(ipfsPath); p != "" {
		opts.Env = append(os.Environ(), "IPFS_PATH="+p)
	}
	return New(opts), nil, nil
}
