package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/iliyamo/movie-tracker/internal/config"
)

const envFileFlag = "env-file"

func configure(app *cli.App) {
	serveCMD := makeServeCMD()
	migrateCMD := makeMigrateCMD()
	app.Commands = []cli.Command{serveCMD, migrateCMD}
	app.Action = serveCMD.Action
}

// loadConfig reads the dotenv file named by the global flag, parses the
// environment and configures the standard logger.
func loadConfig(c *cli.Context) (config.Config, error) {
	if err := config.LoadDotEnv(c.GlobalString(envFileFlag)); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, errors.Wrap(err, "load config")
	}
	configureLogger(cfg)
	return cfg, nil
}

func configureLogger(cfg config.Config) {
	if !cfg.IsDev() {
		log.SetFormatter(&log.JSONFormatter{})
	}
	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("unknown log level %q, using info", cfg.LogLevel)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
