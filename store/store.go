// Package store persists completed proofs in leveldb.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	xdr "github.com/nullstyle/go-xdr/xdr3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/zap"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/shared"
)

var ErrNotFound = errors.New("proof not found")

type record struct {
	AppID    string
	TaskID   string
	Proof    []byte
	StoredAt int64
}

type Store struct {
	db *leveldb.DB
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func dbKey(key shared.TaskKey) []byte {
	return []byte("proof/" + key.AppID + "/" + key.TaskID)
}

// Upsert stores the proof of a task, replacing any previous one.
func (s *Store) Upsert(ctx context.Context, key shared.TaskKey, proof []byte) error {
	var buf bytes.Buffer
	rec := record{AppID: key.AppID, TaskID: key.TaskID, Proof: proof, StoredAt: time.Now().Unix()}
	if _, err := xdr.Marshal(&buf, rec); err != nil {
		return fmt.Errorf("failed serializing proof: %w", err)
	}
	if err := s.db.Put(dbKey(key), buf.Bytes(), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("storing proof of %s: %w", key, err)
	}
	logging.FromContext(ctx).Debug("stored proof", zap.Object("task", key), zap.Int("size", len(proof)))
	return nil
}

// Lookup returns the stored proof of a task. It does not remove it.
func (s *Store) Lookup(ctx context.Context, key shared.TaskKey) ([]byte, error) {
	data, err := s.db.Get(dbKey(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	case err != nil:
		return nil, fmt.Errorf("get proof of %s from DB: %w", key, err)
	}

	var rec record
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize proof of %s: %w", key, err)
	}
	if rec.AppID != key.AppID || rec.TaskID != key.TaskID {
		return nil, fmt.Errorf("stored proof of %s belongs to %s/%s", key, rec.AppID, rec.TaskID)
	}
	return rec.Proof, nil
}
