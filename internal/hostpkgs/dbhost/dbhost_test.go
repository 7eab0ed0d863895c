package dbhost_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"adastra/internal/compiler"
	"adastra/internal/hostabi"
	"adastra/internal/hostpkgs/dbhost"
	"adastra/internal/parser"
	"adastra/internal/types"
	"adastra/internal/vm"
)

func run(t *testing.T, src string) string {
	t.Helper()
	host := hostabi.NewHost()
	core, err := types.RegisterCore(host.Registry)
	require.NoError(t, err)
	require.NoError(t, dbhost.Register(host, core))
	host.Freeze()

	res := parser.Parse("test", src)
	require.Empty(t, res.Diagnostics)
	proto, diags := compiler.Compile("test", res.Stmts)
	require.Empty(t, diags)

	result, err := vm.Run(context.Background(), core, host.Globals(core), proto)
	require.NoError(t, err)
	return result.Display()
}

func TestConnectQueryExecClose(t *testing.T) {
	out := run(t, `
		let h = db.connect("sqlite", "", 0, ":memory:", "", "");
		db.exec(h, "create table widgets (id integer primary key, name text)");
		db.exec(h, "insert into widgets (name) values (?)", "cog");
		let rows = db.query(h, "select id, name from widgets");
		h.close();
		return len(rows);
	`)
	require.Equal(t, "1", out)
}

func TestQueryRowFields(t *testing.T) {
	out := run(t, `
		let h = db.connect("sqlite", "", 0, ":memory:", "", "");
		db.exec(h, "create table widgets (id integer primary key, name text)");
		db.exec(h, "insert into widgets (name) values (?)", "cog");
		let rows = db.query(h, "select id, name from widgets");
		db.close(h);
		return rows[0].name;
	`)
	require.Equal(t, "cog", out)
}

func TestConnectUnsupportedDriver(t *testing.T) {
	host := hostabi.NewHost()
	core, err := types.RegisterCore(host.Registry)
	require.NoError(t, err)
	require.NoError(t, dbhost.Register(host, core))
	host.Freeze()

	fn := host.Registry.Package("db").Functions["connect"]
	_, err = fn.Call([]any{"oracle", "h", int64(0), "d", "u", "p"})
	require.Error(t, err)
}
