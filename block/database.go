package block

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/condition"
)

// DBOperation is the operation of a DB block.
type DBOperation string

const (
	DBGetSingle  DBOperation = "get_single"
	DBGetAll     DBOperation = "get_all"
	DBInsert     DBOperation = "insert"
	DBInsertBulk DBOperation = "insert_bulk"
	DBUpdate     DBOperation = "update"
	DBDelete     DBOperation = "delete"
	DBNative     DBOperation = "native"
)

// DBConfig is the config of the db_* nodes. Table, Script and any string
// nested in Data, Rows, Args or a condition's right-hand side may be a script
// value. UseParams takes Data (insert, update) or Rows (insert_bulk) from the
// block input.
type DBConfig struct {
	ConnectionID string           `json:"connectionId"`
	Table        string           `json:"table"`
	Conditions   []flow.Condition `json:"conditions"`
	Fields       []string         `json:"fields"`
	OrderBy      string           `json:"orderBy"`
	Desc         bool             `json:"desc"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
	Data         map[string]any   `json:"data"`
	Rows         []any            `json:"rows"`
	UseParams    bool             `json:"useParams"`
	Script       string           `json:"script"`
	Args         []any            `json:"args"`
}

// Database delegates one CRUD operation to the adapter of its connection.
type Database struct {
	ec   *flow.ExecutionContext
	op   DBOperation
	cfg  DBConfig
	next string
}

// NewDatabase returns a DB block. Conditions must be expressible as a
// database filter.
func NewDatabase(ec *flow.ExecutionContext, op DBOperation, cfg DBConfig, next string) (*Database, error) {
	if err := condition.ValidateForDB(cfg.Conditions); err != nil {
		return nil, err
	}
	switch op {
	case DBNative:
		if cfg.Script == "" {
			return nil, fmt.Errorf("block: db %s: script is required", op)
		}
	case DBGetSingle, DBGetAll, DBInsert, DBInsertBulk, DBUpdate, DBDelete:
		if cfg.Table == "" {
			return nil, fmt.Errorf("block: db %s: table is required", op)
		}
	default:
		return nil, fmt.Errorf("block: unknown db operation %q", op)
	}
	return &Database{ec: ec, op: op, cfg: cfg, next: next}, nil
}

func (b *Database) Execute(ctx context.Context, params any) (flow.Output, error) {
	adapter, err := b.ec.Adapter(ctx, b.cfg.ConnectionID)
	if err != nil {
		return b.fail(ctx, err), nil
	}

	var result any
	switch b.op {
	case DBGetSingle, DBGetAll, DBDelete:
		q, err := b.query(ctx, params)
		if err != nil {
			return flow.Output{}, err
		}
		switch b.op {
		case DBGetSingle:
			result, err = adapter.GetSingle(ctx, q)
		case DBGetAll:
			result, err = adapter.GetAll(ctx, q)
		default:
			result, err = adapter.Delete(ctx, q)
		}
		if err != nil {
			return b.fail(ctx, err), nil
		}

	case DBInsert, DBUpdate:
		row, err := b.row(ctx, params)
		if err != nil {
			return flow.Output{}, err
		}
		q, err := b.query(ctx, params)
		if err != nil {
			return flow.Output{}, err
		}
		if b.op == DBInsert {
			result, err = adapter.Insert(ctx, q.Table, row)
		} else {
			result, err = adapter.Update(ctx, q, row)
		}
		if err != nil {
			return b.fail(ctx, err), nil
		}

	case DBInsertBulk:
		rows, err := b.rows(ctx, params)
		if err != nil {
			return flow.Output{}, err
		}
		table, err := b.table(ctx, params)
		if err != nil {
			return flow.Output{}, err
		}
		result, err = adapter.InsertBulk(ctx, table, rows)
		if err != nil {
			return b.fail(ctx, err), nil
		}

	case DBNative:
		script, err := resolve(ctx, b.ec, b.cfg.Script, params)
		if err != nil {
			return flow.Output{}, err
		}
		args, err := resolve(ctx, b.ec, toAnySlice(b.cfg.Args), params)
		if err != nil {
			return flow.Output{}, err
		}
		argList, _ := toSlice(args)
		result, err = adapter.Native(ctx, stringify(script), argList)
		if err != nil {
			return b.fail(ctx, err), nil
		}
	}
	return flow.Continue(b.next, result), nil
}

// fail logs the driver error and reports a generic fatal output.
func (b *Database) fail(ctx context.Context, err error) flow.Output {
	b.ec.Log().ErrorContext(ctx, "database operation failed",
		slog.String("operation", string(b.op)),
		slog.String("connection", b.cfg.ConnectionID),
		slog.Any("error", err),
	)
	return flow.Fatal(ErrDatabase.Error())
}

func (b *Database) table(ctx context.Context, params any) (string, error) {
	v, err := resolve(ctx, b.ec, b.cfg.Table, params)
	if err != nil {
		return "", err
	}
	table, ok := v.(string)
	if !ok || table == "" {
		return "", fmt.Errorf("db %s: table resolved to %v", b.op, v)
	}
	return table, nil
}

func (b *Database) query(ctx context.Context, params any) (flow.Query, error) {
	table, err := b.table(ctx, params)
	if err != nil {
		return flow.Query{}, err
	}
	where := make([]flow.Condition, len(b.cfg.Conditions))
	for i, c := range b.cfg.Conditions {
		rhs, err := resolve(ctx, b.ec, c.RHS, params)
		if err != nil {
			return flow.Query{}, err
		}
		c.RHS = rhs
		where[i] = c
	}
	return flow.Query{
		Table:   table,
		Where:   where,
		Fields:  b.cfg.Fields,
		OrderBy: b.cfg.OrderBy,
		Desc:    b.cfg.Desc,
		Limit:   b.cfg.Limit,
		Offset:  b.cfg.Offset,
	}, nil
}

func (b *Database) row(ctx context.Context, params any) (map[string]any, error) {
	var src any = b.cfg.Data
	if b.cfg.UseParams {
		src = params
	}
	v, err := resolve(ctx, b.ec, src, params)
	if err != nil {
		return nil, err
	}
	row, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("db %s: row must be an object, got %T", b.op, v)
	}
	return row, nil
}

func (b *Database) rows(ctx context.Context, params any) ([]map[string]any, error) {
	var src any = b.cfg.Rows
	if b.cfg.UseParams {
		src = params
	}
	v, err := resolve(ctx, b.ec, src, params)
	if err != nil {
		return nil, err
	}
	items, ok := toSlice(v)
	if !ok {
		return nil, fmt.Errorf("db %s: rows must be a list, got %T", b.op, v)
	}
	rows := make([]map[string]any, len(items))
	for i, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("db %s: row %d must be an object, got %T", b.op, i, item)
		}
		rows[i] = row
	}
	return rows, nil
}

func toAnySlice(v []any) any {
	if v == nil {
		return []any{}
	}
	return v
}
