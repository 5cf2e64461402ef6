package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

const keyPrefix = "session:"

// BadgerStore persists sessions in BadgerDB, one JSON value per session.
type BadgerStore struct {
	db       *badger.DB
	maxTurns int
}

var _ Store = (*BadgerStore)(nil)

// BadgerOptions configures a BadgerStore. An empty Path with InMemory set keeps data in memory.
type BadgerOptions struct {
	Path     string
	InMemory bool
	MaxTurns int
}

// NewBadgerStore opens or creates the session database.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path).
		WithLoggingLevel(badger.ERROR)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	return &BadgerStore{db: db, maxTurns: opts.MaxTurns}, nil
}

func (b *BadgerStore) Load(_ context.Context, id string) (*Session, error) {
	s := &Session{ID: id}
	err := b.db.View(func(txn *badger.Txn) error {
		return read(txn, id, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *BadgerStore) Commit(_ context.Context, id string, turns ...model.Message) error {
	return b.update(id, func(s *Session) {
		s.Messages = trim(append(s.Messages, turns...), b.maxTurns)
	})
}

func (b *BadgerStore) SetCanvas(_ context.Context, id string, canvas model.CanvasState) error {
	return b.update(id, func(s *Session) { s.Canvas = canvas })
}

func (b *BadgerStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// update runs a read-modify-write of one session in a single transaction.
func (b *BadgerStore) update(id string, fn func(*Session)) error {
	return b.db.Update(func(txn *badger.Txn) error {
		s := &Session{ID: id}
		if err := read(txn, id, s); err != nil {
			return err
		}
		fn(s)
		s.UpdatedAt = time.Now()

		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		return txn.Set([]byte(keyPrefix+id), data)
	})
}

func read(txn *badger.Txn, id string, s *Session) error {
	item, err := txn.Get([]byte(keyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, s); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		return nil
	})
}
