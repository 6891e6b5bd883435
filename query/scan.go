package query

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/kisielk/sqlstruct"
)

// Row is one result row as a column-name to value mapping.
type Row map[string]any

// ScanRows reads every remaining row into a slice of Row mappings. Text
// values surfaced by the driver as []byte are normalized to string.
func ScanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// scanAll reads every row into dest, which must be a non-nil pointer to a
// slice of structs, pointers to structs, or basic types. Struct fields map
// to columns through the `db` tag.
func scanAll(rows *sql.Rows, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("dbquery: dest must be a non-nil pointer to a slice")
	}
	sliceVal := rv.Elem()
	if sliceVal.Kind() != reflect.Slice {
		return fmt.Errorf("dbquery: dest must be a pointer to a slice")
	}

	elemType := sliceVal.Type().Elem()
	for rows.Next() {
		target := reflect.New(derefType(elemType))
		if err := scanRow(rows, target.Interface()); err != nil {
			return err
		}
		if elemType.Kind() == reflect.Ptr {
			sliceVal = reflect.Append(sliceVal, target)
		} else {
			sliceVal = reflect.Append(sliceVal, target.Elem())
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rv.Elem().Set(sliceVal)
	return nil
}

// scanOne reads the first row into dest, returning ErrNotFound when the
// result set is empty.
func scanOne(rows *sql.Rows, dest any) error {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrNotFound
	}
	if err := scanRow(rows, dest); err != nil {
		return err
	}
	return rows.Err()
}

// scanRow routes scanning by destination shape: structs go through
// sqlstruct, everything else through rows.Scan.
func scanRow(rows *sql.Rows, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("dbquery: dest must be a non-nil pointer")
	}
	if rv.Elem().Kind() == reflect.Struct {
		return sqlstruct.Scan(dest, rows)
	}
	return rows.Scan(dest)
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
