package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"hs-classifier/api/internal/hscode"
)

const schema = `
create table if not exists classifications_cache (
  desc_hash        text        not null,
  engine           text        not null,
  model            text        not null,
  predictions_json jsonb       not null,
  created_at       timestamptz not null default now(),
  primary key (desc_hash, engine, model)
)`

type ClassificationRepo struct {
	DB     *sql.DB
	MaxAge time.Duration
}

func NewClassificationRepo(db *sql.DB, maxAge time.Duration) *ClassificationRepo {
	return &ClassificationRepo{DB: db, MaxAge: maxAge}
}

// OpenPostgres opens a pooled pgx connection and checks it answers.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

func (r *ClassificationRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Find returns cached predictions for key. Rows older than MaxAge (when > 0)
// and rows with unreadable JSON are reported as ErrNotFound.
func (r *ClassificationRepo) Find(ctx context.Context, key Key) ([]hscode.Prediction, error) {
	const q = `select predictions_json, created_at
	           from classifications_cache
	           where desc_hash=$1 and engine=$2 and model=$3`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, key.DescHash, key.Engine, key.Model).Scan(&js, &ts); err != nil {
		return nil, err
	}
	if r.MaxAge > 0 && time.Since(ts) > r.MaxAge {
		return nil, ErrNotFound
	}
	var preds []hscode.Prediction
	if err := json.Unmarshal(js, &preds); err != nil {
		return nil, ErrNotFound
	}
	return preds, nil
}

func (r *ClassificationRepo) Upsert(ctx context.Context, key Key, preds []hscode.Prediction) error {
	js, err := json.Marshal(preds)
	if err != nil {
		return err
	}
	const q = `
insert into classifications_cache(desc_hash, engine, model, predictions_json)
values ($1,$2,$3,$4)
on conflict (desc_hash, engine, model)
do update set predictions_json=excluded.predictions_json, created_at=now()`
	_, err = r.DB.ExecContext(ctx, q, key.DescHash, key.Engine, key.Model, js)
	return err
}

// PurgeOlderThan deletes stale cache rows so the table does not grow without bound.
func (r *ClassificationRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from classifications_cache where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

func (r *ClassificationRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *ClassificationRepo) Close() error {
	return r.DB.Close()
}
