package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	config := filepath.Join(dir, "dagfs.yaml")
	require.NoError(t, os.WriteFile(config, []byte("log-level: none\n"), 0o600))
	return &cli{t: t, base: []string{
		"--config", config,
		"--backend", "localfs",
		"--localfs-dir", filepath.Join(dir, "blocks"),
		"--state", filepath.Join(dir, "state", "state.yaml"),
	}}
}

func (c *cli) run(stdin string, args ...string) (int, string, string) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{args[0]}, c.base...)
	full = append(full, args[1:]...)
	code := run(full, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (c *cli) ok(stdin string, args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(stdin, args...)
	require.Equal(c.t, exitOK, code, "dagfs %v: %s", args, errOut)
	return out
}

func TestPublicTreeCommands(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.run("", "ls")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "dagfs init")

	c.ok("", "init")
	c.ok("", "mkdir", "/docs")
	c.ok("hello", "write", "/docs/a.txt")
	assert.Equal(t, "hello", c.ok("", "cat", "/docs/a.txt"))

	ls := c.ok("", "ls", "/docs")
	assert.Contains(t, ls, "a.txt")
	assert.Contains(t, ls, "file")

	c.ok("hello again", "write", "/docs/a.txt")
	history := strings.Fields(c.ok("", "history", "/docs/a.txt"))
	assert.Len(t, history, 2)

	c.ok("", "mv", "/docs/a.txt", "/b.txt")
	assert.Equal(t, "hello again", c.ok("", "cat", "/b.txt"))
	assert.Contains(t, c.ok("", "stat", "/b.txt"), "kind:     file")

	c.ok("", "rm", "/b.txt")
	code, _, errOut = c.run("", "cat", "/b.txt")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "not found")

	code, _, _ = c.run("", "mkdir", "/a/../b")
	assert.Equal(t, exitUsage, code)

	code, _, _ = c.run("", "init")
	assert.Equal(t, exitUsage, code, "init must not clobber an existing root")
}

func TestPrivateTreeCommands(t *testing.T) {
	c := newCLI(t)

	c.ok("", "private", "init")
	c.ok("secret", "private", "write", "/notes/todo")
	assert.Equal(t, "secret", c.ok("", "private", "cat", "/notes/todo"))
	assert.Contains(t, c.ok("", "private", "ls", "/notes"), "todo")

	c.ok("", "private", "mv", "/notes", "/archive")
	assert.Equal(t, "secret", c.ok("", "private", "cat", "/archive/todo"))
	c.ok("", "private", "latest")
	assert.Contains(t, c.ok("", "private", "stat", "/archive"), "kind:     dir")

	c.ok("", "private", "rm", "/archive")
	code, _, _ := c.run("", "private", "cat", "/archive/todo")
	assert.Equal(t, exitError, code)
}

func TestPublishAndLog(t *testing.T) {
	c := newCLI(t)
	keyDir := filepath.Join(t.TempDir(), "keys")
	seed := strings.Repeat("ab", 32)

	out := c.ok("", "keys", "init", "alice", "--key-dir", keyDir, "--seed-hex", seed)
	assert.Contains(t, out, "ed25519:")
	c.ok("", "keys", "derive", "alice", "publisher", "--key-dir", keyDir)
	assert.Contains(t, c.ok("", "keys", "list", "--key-dir", keyDir), "- publisher")

	c.ok("", "init")
	c.ok("", "private", "init")
	c.ok("", "publish", "--key", "alice", "--role", "publisher", "--key-dir", keyDir)
	c.ok("", "publish", "--kind", "private", "--alg", "dilithium3", "--key", "alice", "--key-dir", keyDir)

	lines := strings.Split(strings.TrimSpace(c.ok("", "log")), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2\t"))
	assert.Contains(t, lines[0], "private")
	assert.Contains(t, lines[0], "dilithium3:")
	assert.Contains(t, lines[1], "public")

	code, _, errOut := c.run("", "log", "--trust", "ed25519:nobody")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "untrusted")

	code, _, _ = c.run("", "publish", "--kind", "secret", "--key", "alice", "--key-dir", keyDir)
	assert.Equal(t, exitUsage, code)
}

func TestBackendsCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"backends"}, strings.NewReader(""), &out, &errOut)
	require.Equal(t, exitOK, code, errOut.String())
	for _, name := range []string{"localfs", "badger", "grpc", "ipfs", "memory"} {
		assert.Contains(t, out.String(), name)
	}
}

func TestBlockCommands(t *testing.T) {
	c := newCLI(t)

	id := strings.TrimSpace(c.ok("raw bytes", "block", "put"))
	assert.True(t, strings.HasPrefix(id, "bafk"), id)
	assert.Equal(t, "raw bytes", c.ok("", "block", "get", id))
	assert.Equal(t, "present\n", c.ok("", "block", "has", id))

	missing := strings.TrimSpace(c.ok("other", "block", "put"))
	other := newCLI(t)
	code, _, _ := other.run("", "block", "has", missing)
	assert.Equal(t, exitError, code)

	code, _, _ = c.run("", "block", "get", "not-a-cid")
	assert.Equal(t, exitUsage, code)
}
