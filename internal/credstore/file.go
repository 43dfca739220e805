package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/taskkeeper/internal/crypto/clientcrypto"
	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/model"
)

const (
	tokenFile = "token"
	userFile  = "user.json"
)

// File stores the credential as two files under a directory. With a passphrase both files
// are sealed with clientcrypto; without one they are plain text with 0600 permissions.
type File struct {
	dir        string
	passphrase []byte
}

var _ Store = (*File)(nil)

// NewFile returns a file store rooted at dir (DefaultDir if empty).
func NewFile(dir, passphrase string) *File {
	if dir == "" {
		dir = DefaultDir()
	}
	f := &File{dir: dir}
	if passphrase != "" {
		f.passphrase = []byte(passphrase)
	}
	return f
}

// Dir returns the directory holding the credential files.
func (f *File) Dir() string { return f.dir }

func (f *File) tokenPath() string { return filepath.Join(f.dir, tokenFile) }
func (f *File) userPath() string  { return filepath.Join(f.dir, userFile) }

// Save writes token and user record.
func (f *File) Save(_ context.Context, cred model.Credential) error {
	if !cred.Present() {
		return errs.Validation("empty token/user id")
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	user, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	if err := f.write(f.tokenPath(), []byte(cred.Token), tokenFile); err != nil {
		return err
	}
	return f.write(f.userPath(), user, userFile)
}

// Load reads both entries; a missing entry means not signed in.
func (f *File) Load(_ context.Context) (model.Credential, error) {
	tok, err := f.read(f.tokenPath(), tokenFile)
	if err != nil {
		return model.Credential{}, err
	}
	user, err := f.read(f.userPath(), userFile)
	if err != nil {
		return model.Credential{}, err
	}
	var cred model.Credential
	if err := json.Unmarshal(user, &cred); err != nil {
		return model.Credential{}, fmt.Errorf("decode %s: %w", userFile, err)
	}
	cred.Token = strings.TrimSpace(string(tok))
	if !cred.Present() {
		return model.Credential{}, errs.ErrUnauthenticated
	}
	cred.ExpiresAt = TokenExpiry(cred.Token)
	return cred, nil
}

// Clear removes both entries.
func (f *File) Clear(_ context.Context) error {
	var out error
	for _, p := range []string{f.tokenPath(), f.userPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			out = errors.Join(out, err)
		}
	}
	return out
}

func (f *File) write(path string, data []byte, purpose string) error {
	if f.passphrase != nil {
		sealed, err := clientcrypto.Seal(f.passphrase, data, []byte(purpose))
		if err != nil {
			return err
		}
		data = sealed
	}
	return os.WriteFile(path, data, 0o600)
}

func (f *File) read(path, purpose string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errs.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !clientcrypto.IsSealed(b) {
		return b, nil
	}
	if f.passphrase == nil {
		return nil, fmt.Errorf("%s is sealed: passphrase required", purpose)
	}
	pt, err := clientcrypto.Open(f.passphrase, b, []byte(purpose))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", purpose, err)
	}
	return pt, nil
}
