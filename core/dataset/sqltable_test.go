package dataset

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func TestSQLTableSchema(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
		AddRow("Asset_ID", "varchar(64)", "NO", "PRI", nil, "").
		AddRow("amount", "double", "YES", "", nil, "").
		AddRow("count", "int(11)", "YES", "", nil, "").
		AddRow("active", "tinyint(1)", "YES", "", nil, "").
		AddRow("updated", "datetime", "YES", "", nil, "").
		AddRow("blob_data", "mediumblob", "YES", "", nil, "")

	mock.ExpectQuery("SHOW COLUMNS FROM `assets`").WillReturnRows(rows)

	schema, err := table.Schema(context.Background())
	assert.NoError(t, err)
	assert.Len(t, schema, 6)

	byName := map[string]FieldDescriptor{}
	for _, f := range schema {
		byName[f.Name] = f
	}
	assert.Equal(t, FieldText, byName["asset_id"].Type)
	assert.False(t, byName["asset_id"].Nullable)
	assert.Equal(t, FieldFloat, byName["amount"].Type)
	assert.Equal(t, FieldInteger, byName["count"].Type)
	assert.Equal(t, FieldBoolean, byName["active"].Type)
	assert.Equal(t, FieldDate, byName["updated"].Type)
	assert.Equal(t, FieldOther, byName["blob_data"].Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTableSchemaMissingTable(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "missing", "id")

	mock.ExpectQuery("SHOW COLUMNS FROM `missing`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}))

	_, err := table.Schema(context.Background())
	assert.Error(t, err)
}

func TestSQLTableRecords(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	rows := sqlmock.NewRows([]string{"Asset_ID", "amount"}).
		AddRow([]byte("a1"), 1.5).
		AddRow([]byte("a2"), 2.5)
	mock.ExpectQuery("SELECT \\* FROM `assets`").WillReturnRows(rows)

	it, err := table.Records(context.Background())
	assert.NoError(t, err)
	defer it.Close()

	first, err := it.Next(context.Background())
	assert.NoError(t, err)
	// Column names are lowercased and []byte values become strings
	assert.Equal(t, "a1", first["asset_id"])
	assert.Equal(t, 1.5, first["amount"])

	second, err := it.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "a2", second["asset_id"])

	_, err = it.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestSQLTableKeys(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	rows := sqlmock.NewRows([]string{"asset_id"}).
		AddRow([]byte("a1")).
		AddRow(int64(7))
	mock.ExpectQuery("SELECT `asset_id` FROM `assets`").WillReturnRows(rows)

	keys, err := table.Keys(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"a1", "7"}, keys)
}

func TestSQLTableInsertBatch(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `assets`").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	succeeded, err := table.WriteBatch(context.Background(), OpInsert, []Record{
		{"asset_id": "a1", "amount": 1.5},
		{"asset_id": "a2", "amount": 2.5},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, succeeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTableUpdateBatch(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `assets` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	succeeded, err := table.WriteBatch(context.Background(), OpUpdate, []Record{
		{"asset_id": "a1", "amount": 3.0},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, succeeded)
}

func TestSQLTableUpdateUnknownKeyRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `assets` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	succeeded, err := table.WriteBatch(context.Background(), OpUpdate, []Record{
		{"asset_id": "ghost", "amount": 3.0},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, succeeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTableDeleteBatch(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `assets`").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	succeeded, err := table.WriteBatch(context.Background(), OpDelete, []Record{
		{"asset_id": "a1"},
		{"asset_id": "a2"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, succeeded)
}

func TestSQLTableInsertFailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `assets`").
		WillReturnError(errors.New("duplicate entry"))
	mock.ExpectRollback()

	succeeded, err := table.WriteBatch(context.Background(), OpInsert, []Record{
		{"asset_id": "a1"},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, succeeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTableEmptyBatch(t *testing.T) {
	db, _ := setupMockDB(t)
	table := NewSQLTable(db, "assets", "asset_id")

	succeeded, err := table.WriteBatch(context.Background(), OpInsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, succeeded)
}
