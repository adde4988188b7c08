package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fieldtrack/assetsync/internal/common"
	"golang.org/x/crypto/argon2"
)

const saltSize = 16

// File is a passphrase-protected Store backed by a single JSON file. Item
// values are sealed with AES-GCM under a key derived from the passphrase
// with argon2id, so the file contents are useless without the passphrase.
//
// It stands in for the platform enclave on desktop and CI; access policy
// flags are recorded but enforcement belongs to the platform.
type File struct {
	mu   sync.Mutex
	path string
	key  []byte
}

type fileItem struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Policy     Policy `json:"policy"`
}

type fileLayout struct {
	Salt  []byte              `json:"salt"`
	Items map[string]fileItem `json:"items"`
}

// NewFile opens (or creates) the store at path, deriving the sealing key
// from passphrase and the file's salt.
func NewFile(path string, passphrase []byte) (*File, error) {
	layout, err := readLayout(path)
	if err != nil {
		return nil, err
	}
	if layout == nil {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		layout = &fileLayout{Salt: salt, Items: map[string]fileItem{}}
		if err := writeLayout(path, layout); err != nil {
			return nil, err
		}
	}

	key := argon2.IDKey(passphrase, layout.Salt, 1, 64*1024, 4, 32)
	return &File{path: path, key: key}, nil
}

func (f *File) SetItem(_ context.Context, key string, value []byte, policy Policy) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	layout, err := readLayout(f.path)
	if err != nil {
		return err
	}
	if layout == nil {
		return errors.New("keystore file missing")
	}

	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	aead, err := newGCM(f.key)
	if err != nil {
		return err
	}
	layout.Items[key] = fileItem{
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, value, []byte(key)),
		Policy:     policy,
	}
	return writeLayout(f.path, layout)
}

func (f *File) GetItem(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	layout, err := readLayout(f.path)
	if err != nil {
		return nil, err
	}
	if layout == nil {
		return nil, common.ErrKeyUnavailable
	}
	item, ok := layout.Items[key]
	if !ok {
		return nil, common.ErrKeyUnavailable
	}
	aead, err := newGCM(f.key)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, item.Nonce, item.Ciphertext, []byte(key))
	if err != nil {
		// Wrong passphrase or tampered file: the item is unreadable.
		return nil, common.ErrKeyUnavailable
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func readLayout(path string) (*fileLayout, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if layout.Items == nil {
		layout.Items = map[string]fileItem{}
	}
	return &layout, nil
}

func writeLayout(path string, layout *fileLayout) error {
	data, err := json.Marshal(layout)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace keystore: %w", err)
	}
	return nil
}
