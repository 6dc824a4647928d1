package entities

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/boardsync/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestUpsert_SuccessRowsAffected1(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`INSERT INTO entities .* ON CONFLICT \(board_id, entity_id\)\s+DO UPDATE SET`)
	now := time.Now().UTC()

	mock.ExpectExec(q.String()).
		WithArgs("b1", "e1", []byte(`{"id":"e1"}`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.EntityRecord{
		BoardID:   "b1",
		EntityID:  "e1",
		Data:      []byte(`{"id":"e1"}`),
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSelectSince_ReturnsRowsAfterCutoff(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	since := time.Now().Add(-time.Minute).UTC()
	t1 := since.Add(10 * time.Second)
	t2 := since.Add(20 * time.Second)

	rows := sqlmock.NewRows([]string{"entity_id", "data", "updated_at"}).
		AddRow("e1", []byte(`{"id":"e1"}`), t1).
		AddRow("e2", []byte(`{"id":"e2"}`), t2)

	mock.ExpectQuery(`SELECT entity_id, data, updated_at FROM entities`).
		WithArgs("b1", since).
		WillReturnRows(rows)

	got, err := repo.SelectSince(context.Background(), "b1", since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].EntityID != "e1" || got[1].EntityID != "e2" {
		t.Fatalf("unexpected order: %s, %s", got[0].EntityID, got[1].EntityID)
	}
	if got[0].BoardID != "b1" {
		t.Fatalf("board id not carried: %q", got[0].BoardID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete_MissingRowIsNotAnError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM entities WHERE board_id=\$1 AND entity_id=\$2`).
		WithArgs("b1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "b1", "ghost"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
