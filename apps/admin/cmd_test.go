package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/apps/shared"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/user"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer, *shared.App) {
	conf := core.NewTestConfig()
	conf.Database.Engine = shared.EngineMemory

	app, err := shared.NewApp(context.Background(), conf, shared.Options{})
	require.NoError(t, err)

	out := new(bytes.Buffer)
	cli := newCommandLine(conf, core.NopLogger, out)
	cli.newApp = func(context.Context) (*shared.App, error) { return app, nil }
	return cli, out, app
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, want an error")
		}
		return
	}
	if tt.wantErr != nil {
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	} else if tt.wantErrStr != "" {
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	} else {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "token: no args", args: []string{"token"}, wantErr: errHelp},
		{name: "token: unknown flag", args: []string{"token", "-lol"}, wantErr: errHelp},
		{name: "report: no screen", args: []string{"report"}, wantErr: errHelp},
		{name: "report: bad filter", args: []string{"report", "-screen", "courses", "-filter", "institution"}, wantErr: errHelp},
		{name: "export: no screen", args: []string{"export", "-format", "csv"}, wantErr: errHelp},
		{name: "seed: memory engine", args: []string{"seed"}, wantErr: errMemoryEngine},
		{name: "migrate: memory engine", args: []string{"migrate", "up"}, wantErr: errMemoryEngine},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)
	cli.openDB = func(context.Context) (*sql.DB, error) { return nil, nil }

	migrateFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "grading", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_token(t *testing.T) {
	cli, out, _ := setup(t)

	err := cli.run([]string{"admin", "token", "-id", "u1", "-name", "Ada", "-email", "ada@example.com", "-role", "admin,teacher"})
	require.NoError(t, err)

	claims, err := echoapi.ParseToken(strings.TrimSpace(out.String()), cli.conf)
	require.NoError(t, err)
	assert.Equal(t, user.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Roles: []string{user.RoleAdmin, user.RoleTeacher}}, claims.User())

	err = cli.run([]string{"admin", "token", "-id", "u1", "-role", "janitor"})
	assert.EqualError(t, err, `invalid role "janitor:"`)
}

func Test_commandLine_report(t *testing.T) {
	cli, out, app := setup(t)
	ctx := context.Background()

	insts, err := app.Registry.Options(ctx, hierarchy.Institution, "")
	require.NoError(t, err)
	require.Len(t, insts, 1)

	t.Run("csv", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "report", "-screen", "institutions"}))
		assert.True(t, strings.HasPrefix(out.String(), "Name,Code,Created\n"))
		assert.Contains(t, out.String(), "Greenfield Academy,GFA,")
	})

	t.Run("filtered", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "report", "-screen", "courses", "-filter", "institution=" + insts[0].ID}))
		assert.Contains(t, out.String(), "Sciences,SCI,")
	})

	t.Run("incomplete", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "report", "-screen", "courses"}))
		assert.NotContains(t, out.String(), "Sciences")
	})

	t.Run("search", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "report", "-screen", "institutions", "-q", "nothing like it"}))
		assert.NotContains(t, out.String(), "Greenfield")
	})

	t.Run("terminal", func(t *testing.T) {
		out.Reset()
		cli.isTerminal = true
		defer func() { cli.isTerminal = false }()
		require.NoError(t, cli.run([]string{"admin", "report", "-screen", "institutions"}))
		assert.Contains(t, out.String(), "Name")
		assert.Contains(t, out.String(), "Greenfield Academy")
	})

	t.Run("unknown screen", func(t *testing.T) {
		err := cli.run([]string{"admin", "report", "-screen", "lol"})
		assert.EqualError(t, err, "screen not found")
	})
}

func Test_commandLine_export(t *testing.T) {
	cli, out, _ := setup(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "institutions.csv")
	require.NoError(t, cli.run([]string{"admin", "export", "-screen", "institutions", "-format", "csv", "-o", path}))
	assert.Contains(t, out.String(), "exported to "+path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Greenfield Academy")

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "export", "-screen", "institutions", "-format", "csv", "-o", "-"}))
	assert.True(t, strings.HasPrefix(out.String(), "Name,Code,Created\n"))

	path = filepath.Join(dir, "institutions.docx")
	assert.Error(t, cli.run([]string{"admin", "export", "-screen", "institutions", "-format", "docx", "-o", path}))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
