// Command bscp-peer is started by bscp on the destination host. It speaks
// the block protocol on stdin and stdout and logs to stderr.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/foxhunt72/bscp/internal/peer"
)

func main() {
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	ctx := context.Background()
	logger := logging.NewTextLogger(os.Stderr, *debug)

	if err := peer.New(logger).Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error(ctx, "peer failed", "error", err)
		os.Exit(1)
	}
}
