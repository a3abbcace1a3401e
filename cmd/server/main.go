package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "movie-tracker"
	app.Usage = "Personal movie and TV series tracker API"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   envFileFlag,
			Usage:  "dotenv file loaded before reading the environment",
			Value:  ".env",
			EnvVar: "ENV_FILE",
		},
	}
	configure(app)
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("failed to run app")
	}
}
