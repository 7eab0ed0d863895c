// Package dbhost is an example host package showing the Export Descriptor
// ABI (C2) end-to-end against a real driver stack: it exports a "db"
// package with connect/query/exec/close functions plus a DBHandle host
// type, grounded on the teacher's internal/database/database.go connection
// pattern (DBConnection, driver-dispatch-by-string) but stripped of its
// security-scanning fields — ScanResults, Credentials, SQLInjectionTest —
// which belong to a different spec entirely.
package dbhost

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"adastra/internal/hostabi"
	"adastra/internal/types"
)

// DBHandle is the payload behind a db.DBHandle Cell: one open connection,
// addressed from script by its host Type rather than by the string ID the
// teacher's DatabaseModule used (spec.md §4.2 host types carry their own
// identity; no id-to-connection map is needed here).
type DBHandle struct {
	driver string
	db     *sql.DB
}

// Register installs the "db" package into host: a DBHandle type with a
// close method, and connect/query/exec/close package functions. Call once
// at startup, before the host freezes its registry.
func Register(host *hostabi.Host, core *types.Core) error {
	handleType, err := registerHandleType(host)
	if err != nil {
		return err
	}
	pkg := host.Package("db")

	pkg.Func(&types.Function{
		Name: "connect",
		Doc:  "connect(driver, host, port, database, username, password) -> DBHandle",
		Call: func(args []any) (any, error) {
			if len(args) != 6 {
				return nil, fmt.Errorf("db.connect: want 6 arguments, got %d", len(args))
			}
			driver, _ := args[0].(string)
			host, _ := args[1].(string)
			port, _ := args[2].(int64)
			database, _ := args[3].(string)
			username, _ := args[4].(string)
			password, _ := args[5].(string)

			sqlDriver, dsn, err := buildDSN(driver, host, port, database, username, password)
			if err != nil {
				return nil, err
			}
			conn, err := sql.Open(sqlDriver, dsn)
			if err != nil {
				return nil, errors.Wrapf(err, "db.connect: open %s", driver)
			}
			if err := conn.Ping(); err != nil {
				conn.Close()
				return nil, errors.Wrapf(err, "db.connect: ping %s", driver)
			}
			handle := &DBHandle{driver: driver, db: conn}
			return types.NewCell(handleType, []any{handle}), nil
		},
	})

	pkg.Func(&types.Function{
		Name: "query",
		Doc:  "query(handle, sql, ...params) -> struct of rows, each row a struct keyed by column name",
		Call: func(args []any) (any, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("db.query: want at least 2 arguments, got %d", len(args))
			}
			handle, ok := args[0].(*DBHandle)
			if !ok {
				return nil, fmt.Errorf("db.query: first argument must be a DBHandle")
			}
			query, _ := args[1].(string)
			rows, err := handle.db.Query(query, args[2:]...)
			if err != nil {
				return nil, errors.Wrap(err, "db.query")
			}
			defer rows.Close()
			result, err := scanRows(core, rows)
			if err != nil {
				return nil, errors.Wrap(err, "db.query")
			}
			return result, nil
		},
	})

	pkg.Func(&types.Function{
		Name: "exec",
		Doc:  "exec(handle, sql, ...params) -> struct{rowsAffected, lastInsertId}",
		Call: func(args []any) (any, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("db.exec: want at least 2 arguments, got %d", len(args))
			}
			handle, ok := args[0].(*DBHandle)
			if !ok {
				return nil, fmt.Errorf("db.exec: first argument must be a DBHandle")
			}
			query, _ := args[1].(string)
			res, err := handle.db.Exec(query, args[2:]...)
			if err != nil {
				return nil, errors.Wrap(err, "db.exec")
			}
			out := types.NewStructObj()
			affected, _ := res.RowsAffected()
			lastID, _ := res.LastInsertId()
			out.Set(types.StructKey("rowsAffected"), types.NewCell(core.Int, []any{affected}))
			out.Set(types.StructKey("lastInsertId"), types.NewCell(core.Int, []any{lastID}))
			return types.NewCell(core.Struct, []any{out}), nil
		},
	})

	pkg.Func(&types.Function{
		Name: "close",
		Doc:  "close(handle) -> nil",
		Call: func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("db.close: want 1 argument, got %d", len(args))
			}
			handle, ok := args[0].(*DBHandle)
			if !ok {
				return nil, fmt.Errorf("db.close: argument must be a DBHandle")
			}
			return nil, handle.db.Close()
		},
	})

	return pkg.Build()
}

// registerHandleType advertises db.DBHandle itself, with a close method so
// script code can write handle.close() as an alternative to db.close(handle)
// (spec.md §4.7 — methods bind self for the duration of the call). Goes
// straight through the Registry rather than PackageBuilder.Type so the
// freshly built *Type comes back directly, for the connect closure below.
func registerHandleType(host *hostabi.Host) (*types.Type, error) {
	return host.Registry.RegisterType(types.Descriptor{
		Name:    "DBHandle",
		Package: "db",
		Doc:     "an open database connection",
		DisplayFn: func(v any) string {
			return fmt.Sprintf("db.DBHandle(%s)", v.(*DBHandle).driver)
		},
		NilTestFn: func(v any) bool { return v.(*DBHandle).db != nil },
		Methods: map[string]*types.Method{
			"close": {
				Name:  "close",
				Arity: 0,
				Call: func(self any, args []any) (any, error) {
					h := self.(*DBHandle)
					return nil, h.db.Close()
				},
			},
		},
	}, (*DBHandle)(nil))
}

// buildDSN mirrors the teacher's DatabaseModule.Connect driver-dispatch
// switch (internal/database/database.go), translated from a connection
// struct's fields into the (driverName, dsn) pair database/sql.Open wants.
func buildDSN(driver, host string, port int64, database, username, password string) (string, string, error) {
	switch driver {
	case "mysql":
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", username, password, host, port, database), nil
	case "postgres", "postgresql":
		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			host, port, username, password, database), nil
	case "sqlite", "sqlite3":
		return "sqlite", database, nil
	case "mssql", "sqlserver":
		return "sqlserver", fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			host, port, username, password, database), nil
	default:
		return "", "", fmt.Errorf("db.connect: unsupported driver %q", driver)
	}
}

// scanRows drains rows into a single multi-element Struct Cell: one
// *StructObj payload per row, keyed by column name. Every element shares
// the Struct Type, so `for row in rows`/`rows[i]`/`len(rows)` all work the
// ordinary array way (spec.md §3 invariant iv — a value is an array of a
// single element type; no separate Array type is needed for this).
func scanRows(core *types.Core, rows *sql.Rows) (types.Cell, error) {
	cols, err := rows.Columns()
	if err != nil {
		return types.Cell{}, err
	}
	var elems []any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return types.Cell{}, err
		}
		row := types.NewStructObj()
		for i, col := range cols {
			row.Set(types.StructKey(col), cellFor(core, raw[i]))
		}
		elems = append(elems, row)
	}
	if err := rows.Err(); err != nil {
		return types.Cell{}, err
	}
	return types.NewCell(core.Struct, elems), nil
}

// cellFor wraps one scanned column value into the Cell of its matching
// Core primitive. Drivers hand back []byte for text columns and time.Time
// for datetime columns; both get folded into String rather than adding
// host types a query result has no business carrying.
func cellFor(core *types.Core, v any) types.Cell {
	switch x := v.(type) {
	case nil:
		return types.NilCell(core.Nil)
	case int64:
		return types.NewCell(core.Int, []any{x})
	case float64:
		return types.NewCell(core.Float, []any{x})
	case bool:
		return types.NewCell(core.Bool, []any{x})
	case string:
		return types.NewCell(core.String, []any{x})
	case []byte:
		return types.NewCell(core.String, []any{string(x)})
	case time.Time:
		return types.NewCell(core.String, []any{x.Format(time.RFC3339)})
	default:
		return types.NewCell(core.String, []any{fmt.Sprintf("%v", x)})
	}
}
