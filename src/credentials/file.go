package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// vaultFile is the on-disk layout of the file store:
//
//	credentials:
//	  sp-prod:
//	    kind: azure-service-principal
//	    subscription_id: ...
//	  registry-ci:
//	    kind: username-password
//	    username: ci
//	    password: ...
type vaultFile struct {
	Credentials map[string]Entry `yaml:"credentials" toml:"credentials"`
}

// FileStore reads credentials from a vault file provisioned by the host.
// The file is read once; the store never writes it.
type FileStore struct {
	path    string
	entries map[string]Entry
}

// NewFileStore loads the vault file at path. TOML is used for .toml files,
// YAML otherwise.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("credential file store: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}

	var vf vaultFile
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &vf)
	} else {
		err = yaml.Unmarshal(data, &vf)
	}
	if err != nil {
		// the parser error may quote file content, so keep only the path
		return nil, fmt.Errorf("parsing credential file %s: malformed document", path)
	}

	return &FileStore{path: path, entries: vf.Credentials}, nil
}

// Name implements Store.
func (f *FileStore) Name() string { return "file" }

// Lookup implements Store.
func (f *FileStore) Lookup(_ context.Context, id string) (*Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, &StoreError{Store: f.Name(), ID: id, Err: ErrCredentialNotFound}
	}
	return &e, nil
}
