package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"xdao.co/dagfs/private"
)

func (a *app) privateTree() (*private.Tree, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	c, err := private.ParseCipher(a.v.GetString("cipher"))
	if err != nil {
		return nil, usageError{err}
	}
	return private.NewTree(store, private.WithLogger(a.log), private.WithCipher(c)), nil
}

func (a *app) openPrivate() (*private.Tree, private.Root, error) {
	t, err := a.privateTree()
	if err != nil {
		return nil, private.Root{}, err
	}
	root, err := a.privateRoot()
	if err != nil {
		return nil, private.Root{}, err
	}
	return t, root, nil
}

// commitPrivate saves root and prints the forest CID. The ref stays in the
// state file only.
func (a *app) commitPrivate(root private.Root) error {
	if err := a.setPrivateRoot(root); err != nil {
		return err
	}
	fmt.Fprintln(a.out, root.Forest)
	return nil
}

func (a *app) privateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "private",
		Short: "Operate on the encrypted private tree",
		Long: `Operate on the encrypted private tree.

The private root (forest CID plus the secret reference to the root
directory) is kept in the state file. Commands print the forest CID, which
is safe to share: it reveals nothing without the reference.`,
	}
	cmd.PersistentFlags().String("cipher", private.AES256GCM.String(), "AEAD for private blocks: aes-256-gcm or xchacha20-poly1305")

	mutating := func(use, short string, nargs cobra.PositionalArgs, op func(cmd *cobra.Command, t *private.Tree, root private.Root, args []string) (private.Root, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  nargs,
			RunE: func(cmd *cobra.Command, args []string) error {
				t, root, err := a.openPrivate()
				if err != nil {
					return err
				}
				next, err := op(cmd, t, root, args)
				if err != nil {
					return err
				}
				return a.commitPrivate(next)
			},
		}
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty private tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.privateRoot(); err == nil && !force {
				return usageError{fmt.Errorf("a private root already exists in %s (use --force)", a.statePath())}
			}
			t, err := a.privateTree()
			if err != nil {
				return err
			}
			root, err := t.NewRoot(a.ctx(cmd), a.now())
			if err != nil {
				return err
			}
			return a.commitPrivate(root)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Replace an existing private root")

	cmd.AddCommand(
		initCmd,
		mutating("mkdir <path>", "Create a private directory and any missing parents", cobra.ExactArgs(1),
			func(cmd *cobra.Command, t *private.Tree, root private.Root, args []string) (private.Root, error) {
				p, err := parsePath(args[0])
				if err != nil {
					return private.Root{}, err
				}
				return t.Mkdir(a.ctx(cmd), root, p, a.now())
			}),
		mutating("write <path> [file|-]", "Encrypt and store a file at path", cobra.RangeArgs(1, 2),
			func(cmd *cobra.Command, t *private.Tree, root private.Root, args []string) (private.Root, error) {
				p, err := parsePath(args[0])
				if err != nil {
					return private.Root{}, err
				}
				data, err := a.readInput(args[1:])
				if err != nil {
					return private.Root{}, err
				}
				return t.Write(a.ctx(cmd), root, p, data, a.now())
			}),
		mutating("rm <path>", "Unlink a private file or directory", cobra.ExactArgs(1),
			func(cmd *cobra.Command, t *private.Tree, root private.Root, args []string) (private.Root, error) {
				p, err := parsePath(args[0])
				if err != nil {
					return private.Root{}, err
				}
				return t.Rm(a.ctx(cmd), root, p, a.now())
			}),
		mutating("mv <from> <to>", "Move a private file or directory", cobra.ExactArgs(2),
			func(cmd *cobra.Command, t *private.Tree, root private.Root, args []string) (private.Root, error) {
				from, err := parsePath(args[0])
				if err != nil {
					return private.Root{}, err
				}
				to, err := parsePath(args[1])
				if err != nil {
					return private.Root{}, err
				}
				return t.BasicMv(a.ctx(cmd), root, from, to, a.now())
			}),
		mutating("latest", "Advance the stored root to the newest revision in its forest", cobra.NoArgs,
			func(cmd *cobra.Command, t *private.Tree, root private.Root, _ []string) (private.Root, error) {
				return t.SearchLatest(a.ctx(cmd), root)
			}),
		&cobra.Command{
			Use:   "cat <path>",
			Short: "Decrypt and print a private file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := parsePath(args[0])
				if err != nil {
					return err
				}
				t, root, err := a.openPrivate()
				if err != nil {
					return err
				}
				data, err := t.Read(a.ctx(cmd), root, p)
				if err != nil {
					return err
				}
				_, err = a.out.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "ls [path]",
			Short: "List a private directory",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := parsePath(argOr(args, "/"))
				if err != nil {
					return err
				}
				t, root, err := a.openPrivate()
				if err != nil {
					return err
				}
				entries, err := t.Ls(a.ctx(cmd), root, p)
				if err != nil {
					return err
				}
				return printEntries(a.out, entries)
			},
		},
		&cobra.Command{
			Use:   "stat <path>",
			Short: "Show a private node's metadata",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := parsePath(args[0])
				if err != nil {
					return err
				}
				t, root, err := a.openPrivate()
				if err != nil {
					return err
				}
				md, err := t.Stat(a.ctx(cmd), root, p)
				if err != nil {
					return err
				}
				printMetadata(a.out, md)
				return nil
			},
		},
	)
	return cmd
}
