package recordstore

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	t.Cleanup(func() { _ = sqlxDB.Close() })
	return NewPostgresStore(sqlxDB), mock
}

func TestPostgresStoreList(t *testing.T) {
	store, mock := newPostgresMock(t)
	rows := sqlmock.NewRows([]string{"data"}).
		AddRow(`{"id":"n1","title":"Họp tổ"}`).
		AddRow(`{"id":"n2","title":"Nộp KHBD"}`)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM records WHERE entity = $1")).
		WithArgs(EntityNotifications).
		WillReturnRows(rows)

	records, err := store.List(context.Background(), EntityNotifications)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"id":"n2","title":"Nộp KHBD"}`, string(records[1]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveUpserts(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectExec("INSERT INTO records").
		WithArgs(EntityDocuments, "doc-1", `{"id":"doc-1","title":"Đề cương"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Save(context.Background(), EntityDocuments, map[string]string{"id": "doc-1", "title": "Đề cương"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDelete(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM records WHERE entity = $1 AND id = $2")).
		WithArgs(EntityDemos, "demo-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), EntityDemos, "demo-1"))
	require.ErrorIs(t, store.Delete(context.Background(), EntityDemos, " "), ErrRecordID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS records").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
