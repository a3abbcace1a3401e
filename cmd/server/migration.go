package main

import (
	"context"

	"github.com/urfave/cli"

	"github.com/iliyamo/movie-tracker/internal/database"
)

func makeMigrateCMD() cli.Command {
	migrateCmd := cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrates database",
	}
	configureMigrate(&migrateCmd)
	return migrateCmd
}

func configureMigrate(c *cli.Command) {
	sub := func(name, alias, usage string) cli.Command {
		return cli.Command{
			Name:    name,
			Aliases: []string{alias},
			Usage:   usage,
			Action: func(c *cli.Context) error {
				return migrate(c, name)
			},
		}
	}
	c.Subcommands = []cli.Command{
		sub("up", "u", "Runs all available migrations"),
		sub("down", "d", "Reverts last migration"),
		sub("status", "s", "Prints migration status"),
		sub("version", "v", "Prints current db version"),
	}
}

func migrate(c *cli.Context, command string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.Migrate(ctx, db, command)
}
