package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"xdao.co/dagfs/cidutil"
	"xdao.co/dagfs/private"
)

// cliState is the on-disk record of the current roots. The private root
// carries key material, so the file is written owner-only.
type cliState struct {
	PublicRoot  string `yaml:"public_root,omitempty"`
	PrivateRoot string `yaml:"private_root,omitempty"`
}

var (
	errNoPublicRoot  = errors.New("no public root; run 'dagfs init' first")
	errNoPrivateRoot = errors.New("no private root; run 'dagfs private init' first")
)

func (a *app) statePath() string { return a.v.GetString("state") }

func (a *app) loadState() (cliState, error) {
	var st cliState
	b, err := afero.ReadFile(a.fs, a.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	if err := yaml.UnmarshalStrict(b, &st); err != nil {
		return st, fmt.Errorf("state %s: %w", a.statePath(), err)
	}
	return st, nil
}

func (a *app) saveState(st cliState) error {
	path := a.statePath()
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(a.fs, tmp, b, 0o600); err != nil {
		return err
	}
	return a.fs.Rename(tmp, path)
}

func (a *app) publicRoot() (cid.Cid, error) {
	st, err := a.loadState()
	if err != nil {
		return cid.Undef, err
	}
	if st.PublicRoot == "" {
		return cid.Undef, errNoPublicRoot
	}
	return cidutil.Parse(st.PublicRoot)
}

func (a *app) setPublicRoot(root cid.Cid) error {
	st, err := a.loadState()
	if err != nil {
		return err
	}
	st.PublicRoot = root.String()
	return a.saveState(st)
}

func (a *app) privateRoot() (private.Root, error) {
	st, err := a.loadState()
	if err != nil {
		return private.Root{}, err
	}
	if st.PrivateRoot == "" {
		return private.Root{}, errNoPrivateRoot
	}
	b, err := hex.DecodeString(st.PrivateRoot)
	if err != nil {
		return private.Root{}, fmt.Errorf("state %s: private root: %w", a.statePath(), err)
	}
	return private.DecodeRoot(b)
}

func (a *app) setPrivateRoot(root private.Root) error {
	st, err := a.loadState()
	if err != nil {
		return err
	}
	b, err := private.EncodeRoot(root)
	if err != nil {
		return err
	}
	st.PrivateRoot = hex.EncodeToString(b)
	return a.saveState(st)
}
