package processing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	result, err := Normalize([]byte(`{"summary": "ward round"}`), nil)
	require.NoError(t, err)
	record := NewResultRecord("url", *result)

	mock.ExpectExec("INSERT INTO processing_results").
		WithArgs(record.ID, "url", "ward round", sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), &record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	result, err := Normalize([]byte(`{"summary": "ward round"}`), nil)
	require.NoError(t, err)
	payload, err := json.Marshal(result)
	require.NoError(t, err)

	id := uuid.New()
	created := time.Now()
	rows := sqlmock.NewRows([]string{"id", "source", "summary", "payload", "processing_time", "created_at"}).
		AddRow(id.String(), "upload", "ward round", payload, 4.2, created)

	mock.ExpectQuery("SELECT id, source, summary, payload, processing_time, created_at").
		WithArgs(5).
		WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, "upload", records[0].Source)
	assert.Equal(t, "ward round", records[0].Result.Summary)
	require.NotNil(t, records[0].ProcessingTime)
	assert.Equal(t, 4.2, *records[0].ProcessingTime)
	require.NoError(t, mock.ExpectationsWereMet())
}
