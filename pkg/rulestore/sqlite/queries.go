package sqlite

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type RuleRow struct {
	Position    int64
	DeviceID    string
	Priority    int64
	DisplayName string
	SourceID    string
}

const listRules = `-- name: ListRules :many
select position, device_id, priority, display_name, source_id from rules order by position
`

func (q *Queries) ListRules(ctx context.Context) ([]RuleRow, error) {
	rows, err := q.db.QueryContext(ctx, listRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RuleRow
	for rows.Next() {
		var i RuleRow
		if err := rows.Scan(
			&i.Position,
			&i.DeviceID,
			&i.Priority,
			&i.DisplayName,
			&i.SourceID,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRules = `-- name: DeleteRules :exec
delete from rules
`

func (q *Queries) DeleteRules(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteRules)
	return err
}

const insertRule = `-- name: InsertRule :exec
insert into rules (position, device_id, priority, display_name, source_id) values (?, ?, ?, ?, ?)
`

func (q *Queries) InsertRule(ctx context.Context, arg RuleRow) error {
	_, err := q.db.ExecContext(ctx, insertRule,
		arg.Position,
		arg.DeviceID,
		arg.Priority,
		arg.DisplayName,
		arg.SourceID,
	)
	return err
}

const dumpSchema = `-- name: DumpSchema :many
select sql from sqlite_master where sql is not null order by type = 'table' desc, name
`

func (q *Queries) DumpSchema(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, dumpSchema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, err
		}
		items = append(items, stmt)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
