package store

import (
	"context"
	"database/sql"

	"hs-classifier/api/internal/hscode"
	"hs-classifier/api/internal/util"
)

var ErrNotFound = sql.ErrNoRows

// Key identifies a cached classification: the same description asked of the
// same engine and model yields the same answer.
type Key struct {
	DescHash string
	Engine   string
	Model    string
}

func NewKey(description, engine, model string) Key {
	return Key{
		DescHash: util.SHA256Hex(util.NormalizeDescription(description)),
		Engine:   engine,
		Model:    model,
	}
}

func (k Key) String() string {
	return "hscode:" + k.Engine + ":" + k.Model + ":" + k.DescHash
}

type Cache interface {
	Find(ctx context.Context, key Key) ([]hscode.Prediction, error)
	Upsert(ctx context.Context, key Key, preds []hscode.Prediction) error
	Ping(ctx context.Context) error
	Close() error
}

// Nop is the cache used when CACHE_BACKEND=none.
type Nop struct{}

func (Nop) Find(context.Context, Key) ([]hscode.Prediction, error)  { return nil, ErrNotFound }
func (Nop) Upsert(context.Context, Key, []hscode.Prediction) error { return nil }
func (Nop) Ping(context.Context) error                             { return nil }
func (Nop) Close() error                                           { return nil }
