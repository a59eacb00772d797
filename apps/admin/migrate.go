package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/storage/database"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	db, err := cli.openDB(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	return migrateFunc(args[0], db, args[1:]...)
}

func (cli *commandLine) seed(ctx context.Context) error {
	db, err := cli.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = migrateFunc("up", db); err != nil {
		return err
	}
	f := database.DemoFixture(time.Now())
	if err = sqlxrepos.Seed(ctx, db, f); err != nil {
		return errors.Wrap(err, "seeding")
	}
	cli.logger.Info("seeded", map[string]interface{}{"nodes": len(f.Nodes), "marks": len(f.Marks), "requests": len(f.Requests)})
	return nil
}
