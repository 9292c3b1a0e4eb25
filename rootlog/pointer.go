package rootlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/spf13/afero"

	"xdao.co/dagfs/cidutil"
)

// Pointer holds the CID of the newest record. Head returns cid.Undef when
// nothing has been published.
type Pointer interface {
	Head(ctx context.Context) (cid.Cid, error)
	Set(ctx context.Context, head cid.Cid) error
}

// MemPointer is a Pointer held in memory.
type MemPointer struct {
	mu   sync.Mutex
	head cid.Cid
}

func (p *MemPointer) Head(context.Context) (cid.Cid, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.head, nil
}

func (p *MemPointer) Set(_ context.Context, head cid.Cid) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.head = head
	return nil
}

// FilePointer keeps the head CID as text in a single file.
type FilePointer struct {
	fs   afero.Fs
	path string
}

func NewFilePointer(fs afero.Fs, path string) *FilePointer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FilePointer{fs: fs, path: path}
}

func (p *FilePointer) Head(context.Context) (cid.Cid, error) {
	b, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cid.Undef, nil
		}
		return cid.Undef, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return cid.Undef, nil
	}
	c, err := cidutil.Parse(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("rootlog: pointer %s: %w", p.path, err)
	}
	return c, nil
}

// Set replaces the file through a rename so readers never see a partial
// CID.
func (p *FilePointer) Set(_ context.Context, head cid.Cid) error {
	if err := p.fs.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := afero.WriteFile(p.fs, tmp, []byte(head.String()+"\n"), 0o644); err != nil {
		return err
	}
	return p.fs.Rename(tmp, p.path)
}
