// Package shared assembles the application the binaries run: storage, services and screens.
package shared

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/screen"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
	emailsvc "github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	boiledrepos "github.com/trezcool/shule/storage/database/sqlboiler"
)

// EngineMemory keeps everything in process, loaded with the demo fixture.
const EngineMemory = "memory"

type App struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Academy    *academy.Service
	Approval   *approval.Service
	Registry   *screen.Registry

	db *sql.DB
}

// Options tune NewApp.
type Options struct {
	Logger   core.Logger
	DBLogger core.Logger
	// Mailer overrides the mail service picked from the config.
	Mailer core.EmailService
	// SkipMigrations leaves the schema alone, for commands that manage it themselves.
	SkipMigrations bool
}

// NewApp opens the configured storage and builds the services and the screen registry on top of it.
func NewApp(ctx context.Context, conf *core.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	if opts.DBLogger == nil {
		opts.DBLogger = opts.Logger
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	app := &App{Conf: conf, Validate: validate, Translator: translator}

	mailer := opts.Mailer
	if mailer == nil {
		tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
		if err != nil {
			return nil, errors.Wrap(err, "parsing email templates")
		}
		if conf.Debug {
			mailer = emailsvc.NewConsoleService(conf, tmpls, opts.Logger)
		} else {
			mailer = emailsvc.NewSendgridService(conf, tmpls, opts.Logger)
		}
	}

	var (
		acadRepo academy.Repository
		apprRepo approval.Repository
	)
	if conf.Database.Engine == EngineMemory {
		mem := inmemdb.Open()
		mem.Load(database.DemoFixture(time.Now()))
		acadRepo, apprRepo = inmemdb.NewAcademyRepository(mem), inmemdb.NewApprovalRepository(mem)
		opts.DBLogger.Info("using the in-memory database")
	} else {
		db, err := OpenDB(ctx, conf, opts.DBLogger, !opts.SkipMigrations)
		if err != nil {
			return nil, err
		}
		app.db = db
		acadRepo, apprRepo = boiledrepos.NewAcademyRepository(db), boiledrepos.NewApprovalRepository(db)
	}

	app.Academy = academy.NewService(acadRepo, validate, translator)
	app.Approval = approval.NewService(apprRepo, mailer, validate, translator)

	screens, err := ReadScreens(conf)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	deps := screen.Deps{
		Academy:  app.Academy,
		Approval: app.Approval,
		Binder:   form.NewBinder(validate, translator),
		Logger:   opts.Logger,
	}
	if app.Registry, err = screen.Load(bytes.NewReader(screens), deps, validate, translator); err != nil {
		_ = app.Close()
		return nil, errors.Wrap(err, "loading screens")
	}
	return app, nil
}

// OpenDB creates the database when missing, opens it and optionally migrates it up.
func OpenDB(ctx context.Context, conf *core.Config, logger core.Logger, migrate bool) (*sql.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if migrate {
		database.SetMigrationLogger(migrationLogger{logger})
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// ReadScreens returns the screen definitions: conf.ScreensFile when set, the embedded ones otherwise.
func ReadScreens(conf *core.Config) ([]byte, error) {
	if conf.ScreensFile != "" {
		b, err := os.ReadFile(conf.ScreensFile)
		return b, errors.Wrapf(err, "reading %s", conf.ScreensFile)
	}
	b, err := appfs.FS.ReadFile(appfs.ScreensFile)
	return b, errors.Wrap(err, "reading embedded screens")
}

// DB returns the SQL database, nil on the in-memory engine.
func (app *App) DB() *sql.DB {
	return app.db
}

func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}

// migrationLogger adapts a core.Logger to goose.
type migrationLogger struct {
	core.Logger
}

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrationLogger) Fatalf(format string, v ...interface{}) {
	l.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
