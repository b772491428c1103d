package publicationauthors

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestAddAuthors_KeepsOrder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `INSERT INTO publication_authors \(publication_id, author_id, author_order\)`
	mock.ExpectExec(q).WithArgs("p1", "alice", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("p1", "bob", 2).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AddAuthors(context.Background(), "p1", []string{"alice", "bob"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAuthors_StopsOnError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO publication_authors`).WithArgs("p1", "alice", 1).WillReturnError(errors.New("fk violation"))

	err := repo.AddAuthors(context.Background(), "p1", []string{"alice", "bob"})
	assert.EqualError(t, err, "db error: fk violation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByPublication(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT publication_id, author_id, author_order FROM publication_authors WHERE publication_id=\$1 ORDER BY author_order`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"publication_id", "author_id", "author_order"}).
			AddRow("p1", "alice", 1).
			AddRow("p1", "bob", 2))

	got, err := repo.ListByPublication(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[1].AuthorID)
	assert.Equal(t, 2, got[1].AuthorOrder)
}

func TestListByPublication_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM publication_authors`).WillReturnError(errors.New("db down"))

	_, err := repo.ListByPublication(context.Background(), "p1")
	assert.EqualError(t, err, "db error: db down")
}
