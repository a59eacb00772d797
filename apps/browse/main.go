package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "charm.land/bubbletea/v2"

	"github.com/trezcool/shule/apps/shared"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/screen"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
)

func main() {
	screenName := flag.String("screen", "institutions", "The screen to open.")
	role := flag.String("role", "admin", "Browse as admin, teacher or student.")
	logFile := flag.String("log", "", "Write logs to this file. Logs are discarded otherwise.")
	flag.Parse()

	conf := core.NewConfig()

	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := logsvc.NewRollbarLogger(log.New(logOut, "BROWSE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	if err := run(conf, logger, *screenName, *role); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(conf *core.Config, logger core.Logger, screenName, role string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	usr, err := browsingUser(role)
	if err != nil {
		return err
	}

	app, err := shared.NewApp(ctx, conf, shared.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer app.Close()

	m := newModel(ctx, app.Registry, usr, logger)
	m.initial = m.open(screenName, screen.State{})
	if m.current() == nil {
		return fmt.Errorf("cannot open %s: %s", screenName, m.alert)
	}

	_, err = tea.NewProgram(m).Run()
	return err
}

func browsingUser(role string) (user.User, error) {
	r := role + ":"
	if !user.IsValidRole(r) {
		return user.User{}, fmt.Errorf("invalid role %q", role)
	}
	return user.User{ID: "browse-" + role, Name: "Terminal " + role, Roles: []string{r}}, nil
}
