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
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(sqlx.NewDb(db, "pgx")), mock
}

func samplePattern() *Pattern {
	now := time.Now()
	return &Pattern{
		ID:            "pat-1",
		CompositeKey:  "triage|pdf|document|small|clean|low",
		DecisionPoint: "triage",
		Decision:      map[string]interface{}{"route": "fast-path"},
		Confidence:    0.8,
		SuccessCount:  3,
		FailureCount:  1,
		LastUsed:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata: Metadata{
			FileExtensions: []string{"pdf"},
			MimeTypes:      []string{"application/pdf"},
			SizeRangeLow:   100,
			SizeRangeHigh:  5000,
			ThreatLevels:   map[string]struct{}{"low": {}},
		},
	}
}

func TestSQLRepository_Upsert(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO patterns`).WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), samplePattern())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_Delete(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`DELETE FROM patterns WHERE composite_key = \$1`).
		WithArgs("triage|pdf|document|small|clean|low").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "triage|pdf|document|small|clean|low")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_DeleteAll(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`DELETE FROM patterns`).WillReturnResult(sqlmock.NewResult(0, 5))

	err := repo.DeleteAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_LoadAll(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "composite_key", "decision_point", "decision", "confidence",
		"success_count", "failure_count", "last_used", "created_at", "updated_at", "metadata",
	}).AddRow(
		"pat-1", "triage|pdf|document|small|clean|low", "triage",
		[]byte(`{"route":"fast-path"}`), 0.8, 3, 1, now, now, now,
		[]byte(`{"fileExtensions":["pdf"],"mimeTypes":["application/pdf"],"sizeRangeLow":100,"sizeRangeHigh":5000,"threatLevels":["low"]}`),
	)
	mock.ExpectQuery(`SELECT \* FROM patterns`).WillReturnRows(rows)

	loaded, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "triage|pdf|document|small|clean|low", loaded[0].CompositeKey)
	require.Equal(t, []string{"pdf"}, loaded[0].Metadata.FileExtensions)
	require.Contains(t, loaded[0].Metadata.ThreatLevels, "low")
	require.NoError(t, mock.ExpectationsWereMet())
}
