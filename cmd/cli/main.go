package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/notematic/internal/client/cli"
	"github.com/dmitrijs2005/notematic/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	os.Exit(app.Run(ctx, cli.CommandFromArgs(os.Args[1:])))

}
