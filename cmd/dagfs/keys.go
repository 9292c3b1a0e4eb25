package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"xdao.co/dagfs/keys"
)

func (a *app) keyStore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(a.fs, a.v.GetString("key-dir"))
}

func (a *app) keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the local signing keys used by 'dagfs publish'",
	}
	cmd.PersistentFlags().String("key-dir", "", "Key store directory (default $HOME/.dagfs/keys)")

	var (
		seedHex string
		force   bool
	)
	initCmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Create a root key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := keys.CheckKeyName(args[0]); err != nil {
				return usageError{err}
			}
			ks, err := a.keyStore()
			if err != nil {
				return err
			}
			var seed []byte
			if seedHex != "" {
				if seed, err = keys.ParseSeedHex(seedHex); err != nil {
					return usageError{fmt.Errorf("--seed-hex: %w", err)}
				}
			} else {
				seed = make([]byte, keys.SeedSize)
				if _, err := rand.Read(seed); err != nil {
					return err
				}
			}
			id, path, err := ks.InitializeRootKey(args[0], seed, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created root key: %s\n", id)
			fmt.Fprintf(a.out, "Stored at: %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&seedHex, "seed-hex", "", "Seed as 64 hex chars (for reproducible setups)")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing key")

	var deriveForce bool
	deriveCmd := &cobra.Command{
		Use:   "derive <name> <role>",
		Short: "Derive a role key from a root key",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := keys.CheckRole(args[1]); err != nil {
				return usageError{err}
			}
			ks, err := a.keyStore()
			if err != nil {
				return err
			}
			id, path, err := ks.DeriveRoleKey(args[0], args[1], deriveForce)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created role key: %s\n", id)
			fmt.Fprintf(a.out, "Stored at: %s\n", path)
			return nil
		},
	}
	deriveCmd.Flags().BoolVar(&deriveForce, "force", false, "Overwrite an existing role key")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ks, err := a.keyStore()
			if err != nil {
				return err
			}
			entries, err := ks.ListKeys()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(a.out, e.Name)
				for _, r := range e.Roles {
					fmt.Fprintf(a.out, "  - %s\n", r)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, deriveCmd, listCmd)
	return cmd
}
