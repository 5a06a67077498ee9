package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGFields are the server-side details of a Postgres error, whichever
// driver raised it.
type PGFields struct {
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Trace is a flattened view of an error chain for structured logs.
type Trace struct {
	Message string    `json:"message"`
	Code    Code      `json:"code,omitempty"`
	Chain   []string  `json:"chain,omitempty"`
	PG      *PGFields `json:"pg,omitempty"`
}

// Dump walks err's chain. PG is set when a pgx or lib/pq error is found.
func Dump(err error) Trace {
	if err == nil {
		return Trace{}
	}
	t := Trace{Message: err.Error(), PG: postgresFields(err)}
	if typed := As(err); typed != nil {
		t.Code = typed.code
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		t.Chain = append(t.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return t
}

// Fields renders the trace as logger fields.
func (t Trace) Fields() map[string]any {
	fields := map[string]any{
		"error":       t.Message,
		"error_code":  t.Code,
		"error_chain": t.Chain,
	}
	if t.PG != nil {
		fields["pg_code"] = t.PG.Code
		fields["pg_constraint"] = t.PG.Constraint
		fields["pg_table"] = t.PG.Table
		fields["pg_column"] = t.PG.Column
		fields["pg_detail"] = t.PG.Detail
		fields["pg_message"] = t.PG.Message
	}
	return fields
}

func postgresFields(err error) *PGFields {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return &PGFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PGFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
