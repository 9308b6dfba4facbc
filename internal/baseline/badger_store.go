package baseline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const defaultBadgerKey = "baseline/history"

// BadgerOptions configures a [BadgerStore].
type BadgerOptions struct {
	Dir      string `mapstructure:"dir"`
	Key      string `mapstructure:"key"`
	InMemory bool   `mapstructure:"in_memory"`
}

// BadgerStore keeps the log under one key of an embedded Badger database.
type BadgerStore struct {
	db   *badger.DB
	key  []byte
	desc string
}

// NewBadgerStore opens (or creates) the database. The caller must Close it.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("badger baseline store requires 'dir'")
		}
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", opts.Dir, err)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	key := opts.Key
	if key == "" {
		key = defaultBadgerKey
	}

	desc := "badger:" + opts.Dir
	if opts.InMemory {
		desc = "badger:memory"
	}
	return &BadgerStore{db: db, key: []byte(key), desc: desc}, nil
}

// Load implements [Store].
func (s *BadgerStore) Load(context.Context) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// Save implements [Store].
func (s *BadgerStore) Save(_ context.Context, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
}

// Close implements [Store].
func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) String() string { return s.desc }
