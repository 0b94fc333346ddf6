/*
Copyright 2026 The NexusForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package patterns

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
)

// Repository is the pattern store's system of record. The in-memory Store is
// a cache in front of it (spec.md §5: "the in-memory state is cache only;
// writes are last-writer-wins within a single composite key").
type Repository interface {
	Upsert(ctx context.Context, p *Pattern) error
	Delete(ctx context.Context, compositeKey string) error
	DeleteAll(ctx context.Context) error
	LoadAll(ctx context.Context) ([]*Pattern, error)
}

// patternRow is the flat, jsonb-backed row shape the repository persists;
// it is an implementation detail serving the store, not a schema design
// deliverable (spec.md's persistence-schema non-goal binds the transport
// layer, not this internal shape).
type patternRow struct {
	ID            string    `db:"id"`
	CompositeKey  string    `db:"composite_key"`
	DecisionPoint string    `db:"decision_point"`
	Decision      []byte    `db:"decision"`
	Confidence    float64   `db:"confidence"`
	SuccessCount  int       `db:"success_count"`
	FailureCount  int       `db:"failure_count"`
	LastUsed      time.Time `db:"last_used"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	Metadata      []byte    `db:"metadata"`
}

// SQLRepository is a pgx-backed Repository, reached through sqlx for its
// struct-scanning convenience.
type SQLRepository struct {
	db *sqlx.DB
}

// OpenSQLRepository connects to dsn using the pgx stdlib driver and wraps
// the connection in sqlx.
func OpenSQLRepository(dsn string) (*SQLRepository, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &SQLRepository{db: db}, nil
}

// NewSQLRepository wraps an already-open sqlx handle, for callers that own
// connection lifecycle themselves (e.g. a shared pool).
func NewSQLRepository(db *sqlx.DB) *SQLRepository { return &SQLRepository{db: db} }

const upsertSQL = `
INSERT INTO patterns (id, composite_key, decision_point, decision, confidence,
	success_count, failure_count, last_used, created_at, updated_at, metadata)
VALUES (:id, :composite_key, :decision_point, :decision, :confidence,
	:success_count, :failure_count, :last_used, :created_at, :updated_at, :metadata)
ON CONFLICT (composite_key) DO UPDATE SET
	decision = EXCLUDED.decision,
	confidence = EXCLUDED.confidence,
	success_count = EXCLUDED.success_count,
	failure_count = EXCLUDED.failure_count,
	last_used = EXCLUDED.last_used,
	updated_at = EXCLUDED.updated_at,
	metadata = EXCLUDED.metadata`

// Upsert writes a pattern by composite key, last-writer-wins.
func (r *SQLRepository) Upsert(ctx context.Context, p *Pattern) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, upsertSQL, row)
	return err
}

// Delete removes a pattern by composite key.
func (r *SQLRepository) Delete(ctx context.Context, compositeKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM patterns WHERE composite_key = $1`, compositeKey)
	return err
}

// DeleteAll truncates the pattern table.
func (r *SQLRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM patterns`)
	return err
}

// LoadAll reads every pattern, for warm-cache population at startup and for
// Export().
func (r *SQLRepository) LoadAll(ctx context.Context) ([]*Pattern, error) {
	var rows []patternRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM patterns`); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*Pattern, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toRow(p *Pattern) (patternRow, error) {
	decision, err := json.Marshal(p.Decision)
	if err != nil {
		return patternRow{}, err
	}
	meta, err := json.Marshal(metadataDoc{
		FileExtensions: p.Metadata.FileExtensions,
		MimeTypes:      p.Metadata.MimeTypes,
		SizeRangeLow:   p.Metadata.SizeRangeLow,
		SizeRangeHigh:  p.Metadata.SizeRangeHigh,
		ThreatLevels:   threatLevelSlice(p.Metadata.ThreatLevels),
	})
	if err != nil {
		return patternRow{}, err
	}
	return patternRow{
		ID:            p.ID,
		CompositeKey:  p.CompositeKey,
		DecisionPoint: p.DecisionPoint,
		Decision:      decision,
		Confidence:    p.Confidence,
		SuccessCount:  p.SuccessCount,
		FailureCount:  p.FailureCount,
		LastUsed:      p.LastUsed,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Metadata:      meta,
	}, nil
}

type metadataDoc struct {
	FileExtensions []string `json:"fileExtensions"`
	MimeTypes      []string `json:"mimeTypes"`
	SizeRangeLow   int64    `json:"sizeRangeLow"`
	SizeRangeHigh  int64    `json:"sizeRangeHigh"`
	ThreatLevels   []string `json:"threatLevels"`
}

func threatLevelSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func fromRow(row patternRow) (*Pattern, error) {
	var decision map[string]interface{}
	if len(row.Decision) > 0 {
		if err := json.Unmarshal(row.Decision, &decision); err != nil {
			return nil, err
		}
	}
	var meta metadataDoc
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			return nil, err
		}
	}
	threatLevels := make(map[string]struct{}, len(meta.ThreatLevels))
	for _, t := range meta.ThreatLevels {
		threatLevels[t] = struct{}{}
	}
	return &Pattern{
		ID:            row.ID,
		CompositeKey:  row.CompositeKey,
		DecisionPoint: row.DecisionPoint,
		Decision:      decision,
		Confidence:    row.Confidence,
		SuccessCount:  row.SuccessCount,
		FailureCount:  row.FailureCount,
		LastUsed:      row.LastUsed,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		Metadata: Metadata{
			FileExtensions: meta.FileExtensions,
			MimeTypes:      meta.MimeTypes,
			SizeRangeLow:   meta.SizeRangeLow,
			SizeRangeHigh:  meta.SizeRangeHigh,
			ThreatLevels:   threatLevels,
		},
	}, nil
}
