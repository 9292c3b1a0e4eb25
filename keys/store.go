package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrNoSigner is returned by LoadSeed when no seed source is given.
var ErrNoSigner = errors.New("keys: no signer provided")

// KeyStore keeps hex-encoded seeds on a filesystem:
//
//	<dir>/<name>/root.key
//	<dir>/<name>/roles/<role>.key
type KeyStore struct {
	fs        afero.Fs
	Directory string
}

type KeyEntry struct {
	Name  string
	Roles []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".dagfs", "keys"), nil
}

// CreateKeyStore opens a store rooted at directory on the OS filesystem,
// or on fs when given. An empty directory selects GetDefaultDirectory.
func CreateKeyStore(fs afero.Fs, directory string) (*KeyStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if directory == "" {
		var err error
		if directory, err = GetDefaultDirectory(); err != nil {
			return nil, err
		}
	}
	return &KeyStore{fs: fs, Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) roleKeyPath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkIdent(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdent("key name", name) }
func CheckRole(role string) error    { return checkIdent("role", role) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) saveSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", SeedSize)
	}
	if err := ks.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := ks.fs.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (ks *KeyStore) loadSeed(path string) ([]byte, error) {
	data, err := afero.ReadFile(ks.fs, path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// InitializeRootKey stores seed as the root key of name and returns the
// Ed25519 signer ID for it.
func (ks *KeyStore) InitializeRootKey(name string, seed []byte, overwrite bool) (signerID, path string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	path = ks.rootKeyPath(name)
	if err := ks.saveSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	id, err := idFor(AlgEd25519, seed)
	return id, path, err
}

// DeriveRoleKey derives and stores the role seed of name.
func (ks *KeyStore) DeriveRoleKey(name, role string, overwrite bool) (signerID, path string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	rootSeed, err := ks.loadSeed(ks.rootKeyPath(name))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return "", "", err
	}
	path = ks.roleKeyPath(name, role)
	if err := ks.saveSeed(path, roleSeed, overwrite); err != nil {
		return "", "", err
	}
	id, err := idFor(AlgEd25519, roleSeed)
	return id, path, err
}

// LoadSeed resolves a seed from, in order: seedHex, keyFile, or the stored
// key of name (and role, if set).
func (ks *KeyStore) LoadSeed(seedHex, name, role, keyFile string) ([]byte, error) {
	switch {
	case seedHex != "":
		return ParseSeedHex(seedHex)
	case keyFile != "":
		return ks.loadSeed(keyFile)
	case name != "":
		if err := CheckKeyName(name); err != nil {
			return nil, err
		}
		if role == "" {
			return ks.loadSeed(ks.rootKeyPath(name))
		}
		if err := CheckRole(role); err != nil {
			return nil, err
		}
		return ks.loadSeed(ks.roleKeyPath(name, role))
	default:
		return nil, ErrNoSigner
	}
}

// LoadSigner is LoadSeed followed by NewSigner.
func (ks *KeyStore) LoadSigner(alg Alg, seedHex, name, role, keyFile string) (Signer, error) {
	seed, err := ks.LoadSeed(seedHex, name, role, keyFile)
	if err != nil {
		return nil, err
	}
	return NewSigner(alg, seed)
}

// ListKeys returns every stored key name with its derived roles, sorted.
func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := afero.ReadDir(ks.fs, ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		var roles []string
		roleEntries, err := afero.ReadDir(ks.fs, filepath.Join(ks.Directory, name, "roles"))
		if err == nil {
			for _, re := range roleEntries {
				if !re.IsDir() && strings.HasSuffix(re.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(re.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Name: name, Roles: roles})
	}
	return result, nil
}

func idFor(alg Alg, seed []byte) (string, error) {
	s, err := NewSigner(alg, seed)
	if err != nil {
		return "", err
	}
	return SignerID(alg, s.PublicKey()), nil
}
