package dataset

import (
	"context"
	"fmt"
	"io"
	"strings"

	"tablesync/core/utils"

	"gorm.io/gorm"
)

// SQLTable exposes a database table through the Table interface. It works
// against any dialect GORM speaks; schema introspection handles MySQL and
// SQLite explicitly.
type SQLTable struct {
	db       *gorm.DB
	table    string
	keyField string
}

// NewSQLTable wraps the named table of an open connection. keyField is the
// column records are keyed by for updates, deletes and key enumeration.
func NewSQLTable(db *gorm.DB, table, keyField string) *SQLTable {
	return &SQLTable{db: db, table: table, keyField: keyField}
}

// Name implements Table.
func (t *SQLTable) Name() string { return t.table }

// KeyField implements Table.
func (t *SQLTable) KeyField() string { return t.keyField }

// columnInfo matches the output of SHOW COLUMNS.
type columnInfo struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string
	Extra   string
}

// Schema implements Table by introspecting the column definitions.
func (t *SQLTable) Schema(ctx context.Context) (Schema, error) {
	db := t.db.WithContext(ctx)

	if db.Dialector.Name() == "sqlite" {
		// SQLite uses PRAGMA table_info
		type sqliteColumn struct {
			Cid        int
			Name       string
			Type       string
			Notnull    int
			DefaultVal *string
			Pk         int
		}
		var cols []sqliteColumn
		if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", t.table)).Scan(&cols).Error; err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", t.table, err)
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("table %s does not exist", t.table)
		}
		schema := make(Schema, 0, len(cols))
		for _, col := range cols {
			schema = append(schema, FieldDescriptor{
				Name:     strings.ToLower(col.Name),
				Type:     fieldTypeFromSQL(col.Type),
				Nullable: col.Notnull == 0,
			})
		}
		return schema, nil
	}

	var cols []columnInfo
	if err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM `%s`", t.table)).Scan(&cols).Error; err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", t.table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", t.table)
	}
	schema := make(Schema, 0, len(cols))
	for _, col := range cols {
		schema = append(schema, FieldDescriptor{
			Name:     strings.ToLower(col.Field),
			Type:     fieldTypeFromSQL(col.Type),
			Nullable: strings.EqualFold(col.Null, "YES"),
		})
	}
	return schema, nil
}

// fieldTypeFromSQL normalizes a SQL column type to the portable set.
func fieldTypeFromSQL(sqlType string) FieldType {
	st := strings.ToLower(sqlType)
	switch {
	case strings.HasPrefix(st, "tinyint(1)"), strings.Contains(st, "bool"):
		return FieldBoolean
	case strings.Contains(st, "int"):
		return FieldInteger
	case strings.Contains(st, "float"), strings.Contains(st, "double"),
		strings.Contains(st, "decimal"), strings.Contains(st, "real"),
		strings.Contains(st, "numeric"):
		return FieldFloat
	case strings.Contains(st, "date"), strings.Contains(st, "time"):
		return FieldDate
	case strings.Contains(st, "char"), strings.Contains(st, "text"),
		strings.Contains(st, "clob"):
		return FieldText
	case strings.Contains(st, "geometry"), strings.Contains(st, "point"),
		strings.Contains(st, "polygon"), strings.Contains(st, "linestring"):
		return FieldGeometry
	default:
		return FieldOther
	}
}

// Records implements Table with a row cursor over the whole table.
func (t *SQLTable) Records(ctx context.Context) (Iterator, error) {
	rows, err := t.db.WithContext(ctx).Table(t.table).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.table, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to read columns of %s: %w", t.table, err)
	}
	return &rowsIterator{rows: rows, cols: cols}, nil
}

// rowsIterator adapts *sql.Rows to the Iterator contract.
type rowsIterator struct {
	rows interface {
		Next() bool
		Scan(dest ...any) error
		Err() error
		Close() error
	}
	cols []string
}

func (it *rowsIterator) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	vals := make([]any, len(it.cols))
	ptrs := make([]any, len(it.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := make(Record, len(it.cols))
	for i, col := range it.cols {
		// Drivers hand back []byte for text columns; keep records
		// comparable across backends.
		if b, ok := vals[i].([]byte); ok {
			rec[strings.ToLower(col)] = string(b)
			continue
		}
		rec[strings.ToLower(col)] = vals[i]
	}
	return rec, nil
}

func (it *rowsIterator) Close() error { return it.rows.Close() }

// Keys implements Table by selecting only the key column.
func (t *SQLTable) Keys(ctx context.Context) ([]string, error) {
	rows, err := t.db.WithContext(ctx).Table(t.table).Select(quoteIdent(t.keyField)).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate keys of %s: %w", t.table, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var val any
		if err := rows.Scan(&val); err != nil {
			return nil, err
		}
		keys = append(keys, utils.ToString(val))
	}
	return keys, rows.Err()
}

// WriteBatch implements Table. Each batch runs inside one transaction, so a
// batch is atomic at the database level.
func (t *SQLTable) WriteBatch(ctx context.Context, kind OperationKind, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	succeeded := 0
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch kind {
		case OpInsert:
			rows := make([]map[string]any, 0, len(records))
			for _, rec := range records {
				rows = append(rows, map[string]any(rec))
			}
			res := tx.Table(t.table).Create(rows)
			if res.Error != nil {
				return res.Error
			}
			succeeded = len(records)

		case OpUpdate:
			for _, rec := range records {
				key := utils.ToString(rec[t.keyField])
				values := make(map[string]any, len(rec))
				for k, v := range rec {
					if strings.EqualFold(k, t.keyField) {
						continue
					}
					values[k] = v
				}
				res := tx.Table(t.table).
					Where(quoteIdent(t.keyField)+" = ?", key).
					Updates(values)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("update matched no row for key %q", key)
				}
				succeeded++
			}

		case OpDelete:
			keys := make([]string, 0, len(records))
			for _, rec := range records {
				keys = append(keys, utils.ToString(rec[t.keyField]))
			}
			res := tx.Table(t.table).
				Where(quoteIdent(t.keyField)+" IN ?", keys).
				Delete(nil)
			if res.Error != nil {
				return res.Error
			}
			succeeded = len(records)

		default:
			return fmt.Errorf("unknown operation kind %q", kind)
		}
		return nil
	})
	if err != nil {
		// The transaction rolled back, nothing from this batch landed.
		return 0, fmt.Errorf("%s batch on %s failed: %w", kind, t.table, err)
	}
	return succeeded, nil
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}
