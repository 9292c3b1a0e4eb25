package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/dagfs/common"
	"xdao.co/dagfs/public"
)

func (a *app) openPublic() (*public.Tree, cid.Cid, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, cid.Undef, err
	}
	root, err := a.publicRoot()
	if err != nil {
		return nil, cid.Undef, err
	}
	return public.NewTree(store, public.WithLogger(a.log)), root, nil
}

func (a *app) commitPublic(root cid.Cid) error {
	if err := a.setPublicRoot(root); err != nil {
		return err
	}
	fmt.Fprintln(a.out, root)
	return nil
}

// readInput reads the named file, or stdin for "-" or no name.
func (a *app) readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(a.in)
	}
	return os.ReadFile(args[0])
}

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty public tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.publicRoot(); err == nil && !force {
				return usageError{fmt.Errorf("a public root already exists in %s (use --force)", a.statePath())}
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			root, err := public.NewTree(store, public.WithLogger(a.log)).NewRoot(a.ctx(cmd), a.now())
			if err != nil {
				return err
			}
			return a.commitPublic(root)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing public root")
	return cmd
}

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory and any missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			next, err := t.Mkdir(a.ctx(cmd), root, p, a.now())
			if err != nil {
				return err
			}
			return a.commitPublic(next)
		},
	}
}

func (a *app) writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <path> [file|-]",
		Short: "Store a file's bytes as a block and link it at path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			data, err := a.readInput(args[1:])
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			content, err := a.store.Put(ctx, data)
			if err != nil {
				return err
			}
			next, err := t.Write(ctx, root, p, content, a.now())
			if err != nil {
				return err
			}
			return a.commitPublic(next)
		},
	}
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print the content of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			content, err := t.Read(ctx, root, p)
			if err != nil {
				return err
			}
			data, err := a.store.Get(ctx, content)
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(argOr(args, "/"))
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			entries, err := t.Ls(a.ctx(cmd), root, p)
			if err != nil {
				return err
			}
			return printEntries(a.out, entries)
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Unlink a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			next, err := t.Rm(a.ctx(cmd), root, p, a.now())
			if err != nil {
				return err
			}
			return a.commitPublic(next)
		},
	}
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parsePath(args[0])
			if err != nil {
				return err
			}
			to, err := parsePath(args[1])
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			next, err := t.BasicMv(a.ctx(cmd), root, from, to, a.now())
			if err != nil {
				return err
			}
			return a.commitPublic(next)
		},
	}
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show a node's metadata and CID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			ctx := a.ctx(cmd)
			id, err := t.Lookup(ctx, root, p)
			if err != nil {
				return err
			}
			md, err := t.Stat(ctx, root, p)
			if err != nil {
				return err
			}
			printMetadata(a.out, md)
			fmt.Fprintf(a.out, "cid:      %s\n", id)
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <path>",
		Short: "List earlier CIDs of a node, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePath(args[0])
			if err != nil {
				return err
			}
			t, root, err := a.openPublic()
			if err != nil {
				return err
			}
			ids, err := t.History(a.ctx(cmd), root, p, limit)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of revisions to print (0 for all)")
	return cmd
}

func argOr(args []string, def string) string {
	if len(args) == 0 {
		return def
	}
	return args[0]
}

func printEntries(w io.Writer, entries []common.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Metadata.Kind, e.Metadata.ModifiedAt().Format(time.RFC3339), e.Name)
	}
	return tw.Flush()
}

func printMetadata(w io.Writer, md common.Metadata) {
	fmt.Fprintf(w, "kind:     %s\n", md.Kind)
	fmt.Fprintf(w, "created:  %s\n", md.CreatedAt().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "modified: %s\n", md.ModifiedAt().Format(time.RFC3339Nano))
}
