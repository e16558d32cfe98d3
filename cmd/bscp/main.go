package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/foxhunt72/bscp/internal/app"
	"github.com/foxhunt72/bscp/internal/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(app.ExitCode(err))
	}

	os.Exit(app.NewApp(cfg).Run(ctx))
}
