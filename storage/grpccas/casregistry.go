package grpccas

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/casregistry"
)

var (
	flagTarget      string
	flagTimeout     time.Duration
	flagMaxMsgBytes int
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "remote block store served by dagfs-blockd",
		Usage:       casregistry.UsageCLI,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-target", "", "dagfs-blockd address host:port (for --backend=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-timeout", 30*time.Second, "Per-call timeout, 0 for none (for --backend=grpc)")
			fs.IntVar(&flagMaxMsgBytes, "grpc-max-msg-bytes", 0, "Max message size in bytes; 0 keeps the grpc default (for --backend=grpc)")
		},
		Open: func() (storage.CAS, func() error, error) {
			return open(flagTarget, flagTimeout, flagMaxMsgBytes)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.CAS, func() error, error) {
			timeout := 30 * time.Second
			maxMsg := 0
			var err error
			if v := cfg["grpc-timeout"]; v != "" {
				if timeout, err = time.ParseDuration(v); err != nil {
					return nil, nil, fmt.Errorf("grpc-timeout: %w", err)
				}
			}
			if v := cfg["grpc-max-msg-bytes"]; v != "" {
				if maxMsg, err = strconv.Atoi(v); err != nil {
					return nil, nil, fmt.Errorf("grpc-max-msg-bytes: %w", err)
				}
			}
			return open(cfg["grpc-target"], timeout, maxMsg)
		},
	})
}

func open(target string, timeout time.Duration, maxMsg int) (storage.CAS, func() error, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil, fmt.Errorf("grpc backend: missing grpc-target")
	}
	c, err := Dial(target, WithTimeout(timeout), WithMaxMsgBytes(maxMsg))
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}
