package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump flattens an error chain and any driver details for logging.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	SQLiteCode string `json:"sqlite_code,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	case errors.As(err, &liteErr):
		d.SQLiteCode = liteErr.ExtendedCode.Error()
	}
	return d
}

// Fields returns the non-empty parts of the dump as log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	add := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	add("error_code", string(d.Code))
	if len(d.Chain) > 0 {
		fields["error_chain"] = d.Chain
	}
	add("pg_code", d.PGCode)
	add("pg_constraint", d.PGConstraint)
	add("pg_table", d.PGTable)
	add("pg_column", d.PGColumn)
	add("pg_detail", d.PGDetail)
	add("pg_message", d.PGMessage)
	add("sqlite_code", d.SQLiteCode)
	return fields
}
