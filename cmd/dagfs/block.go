package main

import (
	"fmt"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

func parseCID(s string) (cid.Cid, error) {
	id, err := cidutil.Parse(s)
	if err != nil {
		return cid.Undef, usageError{fmt.Errorf("%w: %q", storage.ErrInvalidCID, s)}
	}
	return id, nil
}

func (a *app) blockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Raw block store access (CIDv1 raw + sha2-256)",
	}

	put := &cobra.Command{
		Use:   "put [file|-]",
		Short: "Store a file as one block and print its CID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(args)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			id, err := store.Put(a.ctx(cmd), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	}

	var outPath string
	get := &cobra.Command{
		Use:   "get <cid>",
		Short: "Print a block, or write it to --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			b, err := store.Get(a.ctx(cmd), id)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = a.out.Write(b)
				return err
			}
			return os.WriteFile(outPath, b, 0o600)
		},
	}
	get.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")

	has := &cobra.Command{
		Use:   "has <cid>",
		Short: "Exit 0 if the block is present, 1 otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if !store.Has(a.ctx(cmd), id) {
				return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
			}
			fmt.Fprintln(a.out, "present")
			return nil
		},
	}

	cmd.AddCommand(put, get, has)
	return cmd
}
