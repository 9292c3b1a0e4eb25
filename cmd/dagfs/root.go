package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/internal/dlogger"
	"xdao.co/dagfs/storage"
	"xdao.co/dagfs/storage/casconfig"
	"xdao.co/dagfs/storage/casregistry"
)

// app carries what every subcommand needs once the persistent flags are
// parsed.
type app struct {
	v      *viper.Viper
	fs     afero.Fs
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	log     *zap.Logger
	store   storage.CAS
	closeFn func() error
}

// exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type usageError struct{ error }

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{
		v:      viper.New(),
		fs:     afero.NewOsFs(),
		in:     in,
		out:    out,
		errOut: errOut,
		now:    time.Now,
	}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.Execute()
	if a.closeFn != nil {
		if cerr := a.closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(errOut, "dagfs:", err)
	var ue usageError
	if errors.As(err, &ue) || errors.Is(err, common.ErrInvalidArgument) {
		return exitUsage
	}
	return exitError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dagfs",
		Short: "Versioned public and encrypted private file trees over content-addressed blocks",
		Long: `dagfs stores file trees as immutable blocks. Every change produces a new
root; older roots stay readable.

The public tree is plaintext. The private tree encrypts every node with keys
that change on every revision.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default ./dagfs.yaml, then $HOME/.dagfs/dagfs.yaml)")
	pf.String("backend", "localfs", "Block store backend (see 'dagfs backends')")
	pf.String("store-config", "", "YAML block store config; overrides --backend unless both name the same backend")
	pf.String("log-level", dlogger.LogLevelNone, "Log level: debug, info, warn or none")
	pf.String("state", filepath.Join(".dagfs", "state.yaml"), "File holding the current roots")
	pf.Duration("cache-ttl", 5*time.Minute, "Read cache lifetime for blocks; 0 disables the cache")
	casregistry.RegisterFlags(pf, casregistry.UsageCLI)

	root.AddCommand(
		a.backendsCmd(),
		a.blockCmd(),
		a.initCmd(),
		a.mkdirCmd(),
		a.writeCmd(),
		a.catCmd(),
		a.lsCmd(),
		a.rmCmd(),
		a.mvCmd(),
		a.statCmd(),
		a.historyCmd(),
		a.privateCmd(),
		a.keysCmd(),
		a.publishCmd(),
		a.logCmd(),
	)
	return root
}

// setup binds flags to viper, reads the config file, then builds the
// logger. Block stores are opened lazily by commands that need one.
func (a *app) setup(cmd *cobra.Command) error {
	v := a.v
	v.SetEnvPrefix("DAGFS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dagfs")
		v.SetConfigName("dagfs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	// Values from the environment or config file fill flags the user did not
	// set, so backend Open functions see them.
	var ferr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if ferr != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		ferr = f.Value.Set(v.GetString(f.Name))
	})
	if ferr != nil {
		return usageError{ferr}
	}

	log, err := dlogger.GetLogger(v.GetString("log-level"))
	if err != nil {
		return usageError{fmt.Errorf("--log-level: %w", err)}
	}
	a.log = log
	return nil
}

// openStore opens the configured block store once per invocation.
func (a *app) openStore() (storage.CAS, error) {
	if a.store != nil {
		return a.store, nil
	}
	backend := a.v.GetString("backend")
	var (
		cas     storage.CAS
		closeFn func() error
		err     error
	)
	if path := a.v.GetString("store-config"); path != "" {
		cfg, lerr := casconfig.LoadFile(a.fs, path)
		if lerr != nil {
			return nil, lerr
		}
		preferred := ""
		if cfg.Contains(backend) {
			preferred = backend
		}
		cas, closeFn, err = cfg.Open(casregistry.UsageCLI, preferred)
	} else {
		cas, closeFn, err = casregistry.Open(backend, casregistry.UsageCLI)
	}
	if err != nil {
		return nil, err
	}
	if ttl := a.v.GetDuration("cache-ttl"); ttl > 0 {
		cas = storage.NewCached(cas, ttl)
	}
	a.store = storage.Instrument("dagfs", opentracing.GlobalTracer(), a.log, cas)
	a.closeFn = closeFn
	a.log.Debug("opened block store", zap.String("backend", backend))
	return a.store, nil
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parsePath(s string) (common.Path, error) {
	p, err := common.ParsePath(s)
	if err != nil {
		return nil, usageError{err}
	}
	return p, nil
}

func (a *app) backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the compiled-in block store backends",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, b := range casregistry.List(casregistry.UsageCLI) {
				if b.Description == "" {
					fmt.Fprintln(a.out, b.Name)
					continue
				}
				fmt.Fprintf(a.out, "%s\t%s\n", b.Name, b.Description)
			}
			return nil
		},
	}
}
