package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaxsync/internal/common"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func recordColumns() []string {
	return []string{"id", "guardian_id", "body", "version", "updated_at"}
}

func TestGet_Patient(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, guardian_id, body, version, updated_at FROM patients WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("p1", "g1", []byte(`{"id":"p1","details":{"firstName":"Lia"}}`), int64(3), at))

	rec, err := repo.Get(context.Background(), models.CollectionPatients, "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", rec.ID)
	assert.Equal(t, "g1", rec.GuardianID)
	assert.Equal(t, int64(3), rec.Version)
	assert.Equal(t, at, rec.UpdatedAt)
	assert.JSONEq(t, `{"firstName":"Lia"}`, string(rec.Fields["details"]))
}

func TestGet_GuardianOwnsItself(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, id, body, version, updated_at FROM guardians WHERE id = \$1`).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(recordColumns()).AddRow("g1", "g1", []byte(`{}`), int64(1), at))

	rec, err := repo.Get(context.Background(), models.CollectionGuardians, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", rec.GuardianID)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM faqs WHERE id = \$1`).
		WithArgs("f9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), models.CollectionFAQs, "f9")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM faqs WHERE id = \$1`).WillReturnError(errors.New("db down"))

	_, err := repo.Get(context.Background(), models.CollectionFAQs, "f1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestGet_UnknownCollection(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	_, err := repo.Get(context.Background(), models.Collection("visits"), "v1")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestList_FAQs(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, '', body, version, updated_at FROM faqs ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("f1", "", []byte(`{"question":"a"}`), int64(1), at).
			AddRow("f2", "", []byte(`{"question":"b"}`), int64(2), at))

	recs, err := repo.List(context.Background(), models.CollectionFAQs)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "f2", recs[1].ID)
}

func TestList_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM faqs ORDER BY id`).WillReturnRows(sqlmock.NewRows(recordColumns()))

	recs, err := repo.List(context.Background(), models.CollectionFAQs)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestList_BadBody(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM faqs ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(recordColumns()).AddRow("f1", "", []byte(`not json`), int64(1), at))

	_, err := repo.List(context.Background(), models.CollectionFAQs)
	assert.Error(t, err)
}

func TestListByGuardian(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id, guardian_id, body, version, updated_at FROM patients WHERE guardian_id = \$1 ORDER BY id`).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(recordColumns()).AddRow("p1", "g1", []byte(`{}`), int64(1), at))

	recs, err := repo.ListByGuardian(context.Background(), models.CollectionPatients, "g1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "g1", recs[0].GuardianID)
}

func TestListByGuardian_FAQsNotIndexed(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	_, err := repo.ListByGuardian(context.Background(), models.CollectionFAQs, "g1")
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestPut_Patient(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO patients \(id, body, version, updated_at, guardian_id\)`).
		WithArgs("p1", []byte(`{"id":"p1"}`), int64(1), at, "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &models.Record{ID: "p1", GuardianID: "g1", Version: 1, UpdatedAt: at,
		Fields: map[string]json.RawMessage{"id": json.RawMessage(`"p1"`)}}
	require.NoError(t, repo.Put(context.Background(), models.CollectionPatients, rec))
}

func TestPut_FAQ(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO faqs \(id, body, version, updated_at\)`).
		WithArgs("f1", sqlmock.AnyArg(), int64(2), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &models.Record{ID: "f1", Version: 2, UpdatedAt: at}
	require.NoError(t, repo.Put(context.Background(), models.CollectionFAQs, rec))
}

func TestUpdate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE guardians SET body = \$1, version = \$2, updated_at = \$3\s+WHERE id = \$4 AND version = \$5`).
		WithArgs(sqlmock.AnyArg(), int64(5), at, "g1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &models.Record{ID: "g1", Version: 5, UpdatedAt: at, Fields: map[string]json.RawMessage{}}
	require.NoError(t, repo.Update(context.Background(), models.CollectionGuardians, rec, 4))
}

func TestUpdate_VersionConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE guardians SET`).
		WithArgs(sqlmock.AnyArg(), int64(5), at, "g1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := &models.Record{ID: "g1", Version: 5, UpdatedAt: at}
	err := repo.Update(context.Background(), models.CollectionGuardians, rec, 4)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
}

func TestUpdate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE patients SET`).WillReturnError(errors.New("boom"))

	err := repo.Update(context.Background(), models.CollectionPatients, &models.Record{ID: "p1"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: boom")
}
