package analysis

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/config"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/translator"
)

const listTablesSQL = "SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = $2 ORDER BY table_name"

func newMockSource(t *testing.T, rowLimit int) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresSource(db, "", rowLimit, nil), mock
}

func expectTables(mock sqlmock.Sqlmock, names ...string) {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, n := range names {
		rows.AddRow(n)
	}
	mock.ExpectQuery(regexp.QuoteMeta(listTablesSQL)).
		WithArgs("public", "BASE TABLE").
		WillReturnRows(rows)
}

func TestPostgres_ListTables(t *testing.T) {
	pg, mock := newMockSource(t, 0)
	expectTables(mock, "branches", "loans")

	tables, err := pg.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"branches", "loans"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReadTable(t *testing.T) {
	pg, mock := newMockSource(t, 100)
	expectTables(mock, "loans")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."loans" LIMIT 100`)).
		WillReturnRows(sqlmock.NewRows([]string{"portfolio", "principal", "rate"}).
			AddRow("P1", []byte("7500.00"), "6%").
			AddRow("P2", 3000.0, nil))

	ds, err := pg.ReadTable(context.Background(), "loans")
	require.NoError(t, err)
	assert.Equal(t, "Loans", ds.Name)
	assert.Equal(t, "public.loans", ds.FileName)
	assert.Equal(t, FormatPostgres, ds.Format)
	assert.Equal(t, []string{"portfolio", "principal", "rate"}, ds.Headers)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "7500.00", ds.Rows[0]["principal"])
	assert.Equal(t, 3000.0, ds.Rows[1]["principal"])
	assert.Nil(t, ds.Rows[1]["rate"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReadTableRejectsUnknownTable(t *testing.T) {
	pg, mock := newMockSource(t, 0)
	expectTables(mock, "loans")

	_, err := pg.ReadTable(context.Background(), `loans"; DROP TABLE loans; --`)
	assert.True(t, errors.Is(err, ErrUnknownTable))
	assert.NoError(t, mock.ExpectationsWereMet(), "no read is issued")
}

func TestPostgres_ReadTableEmpty(t *testing.T) {
	pg, mock := newMockSource(t, 0)
	expectTables(mock, "loans")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."loans"`)).
		WillReturnRows(sqlmock.NewRows([]string{"portfolio"}))

	_, err := pg.ReadTable(context.Background(), "loans")
	assert.True(t, errors.Is(err, ErrEmptyDataset))
}

func TestPostgres_ListTablesError(t *testing.T) {
	pg, mock := newMockSource(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta(listTablesSQL)).WillReturnError(errors.New("connection reset"))

	_, err := pg.ListTables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list tables")
}

func TestImporter_ImportTable(t *testing.T) {
	pg, mock := newMockSource(t, 0)
	expectTables(mock, "branches")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."branches"`)).
		WillReturnRows(sqlmock.NewRows([]string{"branch_number", "branch_name"}).
			AddRow(int64(1), "Downtown").
			AddRow(int64(4), "Lakeside"))

	store := state.NewStore()
	reg := translator.NewRegistry()
	res, err := NewImporter(store, reg, nil, nil).ImportTable(context.Background(), pg, "branches", "")
	require.NoError(t, err)
	assert.Equal(t, "Branches", res.Source.Name)
	assert.Equal(t, 2, res.Source.RowCount)

	code, ok := reg.Lookup("branch", "Lakeside")
	require.True(t, ok)
	assert.Equal(t, 4, code)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "bank", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=bank sslmode=disable", dsn)
}
