package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/filevault/internal/client/cli"
	"github.com/dmitrijs2005/filevault/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}

}
