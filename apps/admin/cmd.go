package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/trezcool/shule/apps/shared"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	errHelp         = errors.New("help provided")
	errMemoryEngine = errors.New("the in-memory engine has no database to manage")

	// admin runs the screen commands
	admin = user.User{ID: "admin-cli", Name: "Admin CLI", Roles: []string{user.RoleSuperAdmin}}
)

type commandLine struct {
	conf       *core.Config
	logger     core.Logger
	out        io.Writer
	isTerminal bool

	openDB func(ctx context.Context) (*sql.DB, error)
	newApp func(ctx context.Context) (*shared.App, error)
}

func newCommandLine(conf *core.Config, logger core.Logger, out io.Writer) *commandLine {
	return &commandLine{
		conf:   conf,
		logger: logger,
		out:    out,
		openDB: func(ctx context.Context) (*sql.DB, error) {
			if conf.Database.Engine == shared.EngineMemory {
				return nil, errMemoryEngine
			}
			return shared.OpenDB(ctx, conf, logger, false)
		},
		newApp: func(ctx context.Context) (*shared.App, error) {
			return shared.NewApp(ctx, conf, shared.Options{Logger: logger})
		},
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the database")
	fmt.Fprintln(cli.out, "  seed - load the demo institution into the database")
	fmt.Fprintln(cli.out, "  token -id ID -name NAME -email EMAIL -role ROLE[,ROLE] - print a signed API token")
	fmt.Fprintln(cli.out, "  report -screen NAME [-filter KIND=ID ...] [-q SEARCH] - print what a screen lists")
	fmt.Fprintln(cli.out, "  export -screen NAME -format FORMAT [-filter KIND=ID ...] [-o FILE] - export a screen")
}

// filterFlags collects repeated -filter key=value flags.
type filterFlags map[string]string

func (f filterFlags) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f filterFlags) Set(s string) error {
	kv := strings.SplitN(s, "=", 2)
	if len(kv) != 2 || kv[0] == "" {
		return fmt.Errorf("filter must be of form KIND=ID (got %q)", s)
	}
	f[kv[0]] = kv[1]
	return nil
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	tokenCmd := cli.newFlagSet("token")
	tokenID := tokenCmd.String("id", "", "The user's id.")
	tokenName := tokenCmd.String("name", "", "The user's name.")
	tokenEmail := tokenCmd.String("email", "", "The user's email.")
	tokenRoles := tokenCmd.String("role", "", "Comma separated roles, e.g. admin or teacher.")

	reportCmd := cli.newFlagSet("report")
	reportScreen := reportCmd.String("screen", "", "The screen to list.")
	reportSearch := reportCmd.String("q", "", "Search text.")
	reportFilters := make(filterFlags)
	reportCmd.Var(reportFilters, "filter", "A filter as KIND=ID. Repeatable.")

	exportCmd := cli.newFlagSet("export")
	exportScreen := exportCmd.String("screen", "", "The screen to export.")
	exportFormat := exportCmd.String("format", "xlsx", "xlsx, pdf, csv or template.")
	exportOut := exportCmd.String("o", "", "Output file. Defaults to the export's filename.")
	exportFilters := make(filterFlags)
	exportCmd.Var(exportFilters, "filter", "A filter as KIND=ID. Repeatable.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "seed":
		return cli.seed(ctx)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenID == "" || *tokenRoles == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(user.User{ID: *tokenID, Name: *tokenName, Email: *tokenEmail}, *tokenRoles)
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *reportScreen == "" {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(ctx, *reportScreen, reportFilters, *reportSearch)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportScreen == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, *exportScreen, *exportFormat, exportFilters, *exportOut)
	default:
		cli.printUsage()
		return errHelp
	}
}
