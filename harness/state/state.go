// Package state persists the artifacts each phase hands to the next:
// deployed contracts, funded accounts and pre-signed transactions.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apetrovskiy/neon-evm/harness/constant"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

const (
	Schema         = "neonbench/state"
	CurrentVersion = 1
)

// Kind identifies which phase artifact a file holds.
type Kind string

const (
	KindContracts    Kind = "contracts"
	KindAccounts     Kind = "accounts"
	KindTransactions Kind = "transactions"
)

// Envelope wraps every state file.
type Envelope[T any] struct {
	Schema    string    `json:"schema"`
	Version   int       `json:"version"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Records   []T       `json:"records"`
}

// Save writes records to path through a temporary file.
func Save[T any](path string, kind Kind, records []T) error {
	if records == nil {
		records = []T{}
	}
	env := Envelope[T]{
		Schema:    Schema,
		Version:   CurrentVersion,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Records:   records,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return harnesserrors.NewStateError(fmt.Sprintf("failed to marshal %s", kind), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return harnesserrors.NewStateError("failed to create state directory", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return harnesserrors.NewStateError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return harnesserrors.NewStateError(fmt.Sprintf("failed to replace %s", path), err)
	}
	return nil
}

// Load reads records of kind from path, rejecting foreign or outdated files.
func Load[T any](path string, kind Kind) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, harnesserrors.NewStateError(fmt.Sprintf("failed to read %s", path), err)
	}

	var env Envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, harnesserrors.NewStateError(fmt.Sprintf("failed to unmarshal %s", path), err)
	}
	switch {
	case env.Schema != Schema:
		return nil, harnesserrors.NewStateError(fmt.Sprintf("%s: unknown schema %q", path, env.Schema), nil)
	case env.Version != CurrentVersion:
		return nil, harnesserrors.NewStateError(
			fmt.Sprintf("%s: unsupported version %d, expected %d", path, env.Version, CurrentVersion), nil)
	case env.Kind != kind:
		return nil, harnesserrors.NewStateError(fmt.Sprintf("%s: holds %q, expected %q", path, env.Kind, kind), nil)
	}
	return env.Records, nil
}

// Store locates the state files under a home directory.
type Store struct {
	dir string
}

func NewStore(nodeHome string) *Store {
	return &Store{dir: filepath.Join(nodeHome, constant.StateSubdir)}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) SaveContracts(records []Contract) error {
	return Save(s.path(constant.ContractsFileName), KindContracts, records)
}

func (s *Store) LoadContracts() ([]Contract, error) {
	return Load[Contract](s.path(constant.ContractsFileName), KindContracts)
}

func (s *Store) SaveAccounts(records []Account) error {
	return Save(s.path(constant.AccountsFileName), KindAccounts, records)
}

func (s *Store) LoadAccounts() ([]Account, error) {
	return Load[Account](s.path(constant.AccountsFileName), KindAccounts)
}

func (s *Store) SaveTransactions(records []Transaction) error {
	return Save(s.path(constant.TransactionsFileName), KindTransactions, records)
}

func (s *Store) LoadTransactions() ([]Transaction, error) {
	return Load[Transaction](s.path(constant.TransactionsFileName), KindTransactions)
}
