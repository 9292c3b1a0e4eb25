package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/dagfs/keys"
	"xdao.co/dagfs/rootlog"
)

func (a *app) rootLog() (*rootlog.Log, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	head := a.v.GetString("log-head")
	if head == "" {
		head = filepath.Join(filepath.Dir(a.statePath()), "rootlog.head")
	}
	var opts []rootlog.Option
	opts = append(opts, rootlog.WithLogger(a.log))
	if trusted := a.v.GetStringSlice("trust"); len(trusted) > 0 {
		opts = append(opts, rootlog.WithTrustedSigners(trusted...))
	}
	return rootlog.New(store, rootlog.NewFilePointer(a.fs, head), opts...), nil
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-head", "", "File holding the newest record CID (default next to the state file)")
}

func (a *app) publishCmd() *cobra.Command {
	var (
		kind    string
		alg     string
		name    string
		role    string
		seedHex string
		keyFile string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Sign the current root and append it to the root log",
		Long: `Sign the current root and append it to the root log.

--kind public publishes the public root CID. --kind private publishes only
the private forest CID; the secret root reference is never published.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sigAlg, err := keys.ParseAlg(alg)
			if err != nil {
				return usageError{err}
			}
			var root cid.Cid
			switch rootlog.Kind(kind) {
			case rootlog.KindPublic:
				if root, err = a.publicRoot(); err != nil {
					return err
				}
			case rootlog.KindPrivate:
				pr, err := a.privateRoot()
				if err != nil {
					return err
				}
				root = pr.Forest
			default:
				return usageError{fmt.Errorf("--kind must be public or private, got %q", kind)}
			}

			ks, err := a.keyStore()
			if err != nil {
				return err
			}
			signer, err := ks.LoadSigner(sigAlg, seedHex, name, role, keyFile)
			if err != nil {
				return err
			}
			g, err := a.rootLog()
			if err != nil {
				return err
			}
			id, rec, err := g.Publish(a.ctx(cmd), signer, rootlog.Kind(kind), root, a.now())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\tseq=%d\t%s\n", id, rec.Seq, rec.SignerID())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", string(rootlog.KindPublic), "Which root to publish: public or private")
	f.StringVar(&alg, "alg", string(keys.AlgEd25519), "Signature algorithm: ed25519 or dilithium3")
	f.StringVar(&name, "key", "", "Key name in the key store")
	f.StringVar(&role, "role", "", "Derived role of --key to sign with")
	f.StringVar(&seedHex, "seed-hex", "", "Sign with this seed instead of a stored key")
	f.StringVar(&keyFile, "key-file", "", "Sign with the seed in this file")
	f.String("key-dir", "", "Key store directory (default $HOME/.dagfs/keys)")
	addLogFlags(cmd)
	return cmd
}

func (a *app) logCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Verify and list published roots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.rootLog()
			if err != nil {
				return err
			}
			return g.Walk(a.ctx(cmd), limit, func(id cid.Cid, r rootlog.Record) error {
				fmt.Fprintf(a.out, "%d\t%s\t%s\t%s\t%s\n", r.Seq, r.Time.Format(time.RFC3339), r.Kind, r.Root, r.SignerID())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 for all)")
	cmd.Flags().StringSlice("trust", nil, "Accept only records from these signer IDs")
	addLogFlags(cmd)
	return cmd
}
