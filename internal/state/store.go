package state

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// Store persists the state document at a single URL. Any scheme afs supports
// works; in practice this is a local file next to the rest of the tool's data.
type Store struct {
	fs  afs.Service
	url string
}

func NewStore(url string) *Store {
	return &Store{fs: afs.New(), url: url}
}

func (s *Store) URL() string {
	return s.url
}

// Load reads and migrates the persisted state. A missing file yields the
// default empty state. Corrupt bytes also yield the default state, with the
// corruption error returned alongside so the caller can surface it — a broken
// state file must never prevent startup.
func (s *Store) Load(ctx context.Context) (*PersistedState, error) {
	exists, err := s.fs.Exists(ctx, s.url)
	if err != nil {
		return DefaultState(), fmt.Errorf("check state file %s: %w", s.url, err)
	}
	if !exists {
		return DefaultState(), nil
	}

	data, err := s.fs.DownloadWithURL(ctx, s.url)
	if err != nil {
		return DefaultState(), fmt.Errorf("read state file %s: %w", s.url, err)
	}

	st, err := Load(data)
	if err != nil {
		return DefaultState(), fmt.Errorf("parse state file %s: %w", s.url, err)
	}
	return st, nil
}

func (s *Store) Save(ctx context.Context, st *PersistedState) error {
	data, err := Save(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.fs.Upload(ctx, s.url, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write state file %s: %w", s.url, err)
	}
	return nil
}
