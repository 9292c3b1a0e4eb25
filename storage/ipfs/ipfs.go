// Package ipfs stores blocks in a local Kubo repository through the ipfs
// command line, offline. Blocks use the same CIDv1 raw sha2-256 addressing
// as every other backend, so a dagfs tree written here can be served by the
// Kubo gateway unchanged.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/storage"
)

type CAS struct {
	bin string
	env []string
	pin bool
	log *zap.Logger
}

var _ storage.CAS = (*CAS)(nil)

type Options struct {
	// Bin is the ipfs binary. Defaults to "ipfs" on PATH.
	Bin string
	// Env replaces the command environment when non-nil, e.g. to set IPFS_PATH.
	Env []string
	// Pin pins every stored block so "ipfs repo gc" keeps it.
	Pin    bool
	Logger *zap.Logger
}

func New(opts Options) *CAS {
	c := &CAS{bin: opts.Bin, env: opts.Env, pin: opts.Pin, log: opts.Logger}
	if c.bin == "" {
		c.bin = "ipfs"
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// CommandError is a failed ipfs invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := e.Stderr
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("ipfs %s: %s", strings.Join(e.Args[:min(2, len(e.Args))], " "), msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Is matches storage.ErrNotFound when Kubo reports a missing block.
func (e *CommandError) Is(target error) bool {
	return target == storage.ErrNotFound && strings.Contains(strings.ToLower(e.Stderr), "not found")
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	args := []string{"block", "put",
		"--quiet", "--format=raw", "--mhtype=sha2-256", "--mhlen=32", "--cid-version=1",
		fmt.Sprintf("--pin=%t", c.pin),
		"/dev/stdin",
	}
	out, err := c.run(ctx, data, args...)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return got, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(ctx, nil, "block", "get", id.String())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := cidutil.Verify(id, out); err != nil {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.run(ctx, nil, "block", "stat", "--offline", id.String())
	return err == nil
}

func (c *CAS) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if c.env != nil {
		cmd.Env = c.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	cerr := &CommandError{Args: args, Err: err}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		cerr.Stderr = strings.TrimSpace(string(ee.Stderr))
	}
	c.log.Debug("ipfs command failed", zap.Strings("args", args), zap.Error(cerr))
	return nil, cerr
}
