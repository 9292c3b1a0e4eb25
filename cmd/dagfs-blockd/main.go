// Command dagfs-blockd serves any registered block store backend over gRPC.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"xdao.co/dagfs/internal/dlogger"
	"xdao.co/dagfs/storage/casregistry"
	"xdao.co/dagfs/storage/grpccas"

	_ "xdao.co/dagfs/storage/badgercas"
	_ "xdao.co/dagfs/storage/ipfs"
	_ "xdao.co/dagfs/storage/localfs"
	_ "xdao.co/dagfs/storage/memcas"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dagfs-blockd:", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "dagfs-blockd",
		Short:         "Serve a block store over gRPC",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindEnv(v, cmd.Flags()); err != nil {
				return err
			}
			if v.GetBool("list-backends") {
				for _, b := range casregistry.List(casregistry.UsageDaemon) {
					if b.Description == "" {
						fmt.Fprintln(cmd.OutOrStdout(), b.Name)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b.Name, b.Description)
				}
				return nil
			}
			log, err := dlogger.GetLogger(v.GetString("log-level"))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, log, v.GetString("listen"), v.GetString("backend"), v.GetInt("max-msg-bytes"))
		},
	}
	f := cmd.Flags()
	f.String("listen", "127.0.0.1:7777", "Listen address")
	f.String("backend", "localfs", "Block store backend name")
	f.Bool("list-backends", false, "List supported backends and exit")
	f.String("log-level", dlogger.LogLevelInfo, "Log level: debug, info, warn or none")
	f.Int("max-msg-bytes", 0, "Largest accepted message in bytes (0 uses the gRPC default)")
	casregistry.RegisterFlags(f, casregistry.UsageDaemon)
	return cmd
}

// bindEnv lets DAGFS_BLOCKD_<FLAG> fill any flag not given on the command
// line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix("DAGFS_BLOCKD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err == nil && !f.Changed && v.IsSet(f.Name) {
			err = f.Value.Set(v.GetString(f.Name))
		}
	})
	return err
}

func serve(ctx context.Context, log *zap.Logger, listen, backend string, maxMsg int) error {
	cas, closeFn, err := casregistry.Open(backend, casregistry.UsageDaemon)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer func() {
			if err := closeFn(); err != nil {
				log.Warn("closing backend", zap.Error(err))
			}
		}()
	}

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}

	var opts []grpc.ServerOption
	if maxMsg > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMsg), grpc.MaxSendMsgSize(maxMsg))
	}
	opts = append(opts, grpc.UnaryInterceptor(grpccas.LoggingInterceptor(log)))
	s := grpc.NewServer(opts...)
	grpccas.NewServer(cas, log).Register(s)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		s.GracefulStop()
	}()

	log.Info("dagfs-blockd listening", zap.String("addr", lis.Addr().String()), zap.String("backend", backend))
	return s.Serve(lis)
}
