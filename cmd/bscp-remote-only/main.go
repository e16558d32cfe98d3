// Command bscp-remote-only computes the digest manifest of a destination
// file and stores it as a checkpoint, so a later bscp run can skip the
// remote scan.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/foxhunt72/bscp/internal/checkpoint"
	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/foxhunt72/bscp/internal/peer"
)

const usage = "bscp-remote-only <filename> <hashname> <size> <blocksize> <output>"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) != 5 {
		fmt.Fprintf(stderr, "Usage:\n\n    %s\n\n", usage)
		return 1
	}

	size, errSize := strconv.ParseUint(args[2], 10, 64)
	blockSize, errBlock := strconv.ParseUint(args[3], 10, 64)
	if errSize != nil || errBlock != nil {
		fmt.Fprintf(stderr, "Usage:\n\n    %s\n\n", usage)
		return 1
	}

	logger := logging.NewTextLogger(stderr, false)
	filename, hashName, output := args[0], args[1], args[4]

	digests, err := peer.RemoteDigests(filename, hashName, size, blockSize)
	if err != nil {
		logger.Error(ctx, "digest scan failed", "file", filename, "error", err)
		return 1
	}

	store, name, err := checkpoint.Open(ctx, output, checkpoint.Options{}, logger)
	if err != nil {
		logger.Error(ctx, "open checkpoint", "output", output, "error", err)
		return 1
	}
	defer store.Close()

	if err := store.Save(ctx, name, &checkpoint.Checkpoint{Digests: digests}); err != nil {
		logger.Error(ctx, "save checkpoint", "output", output, "error", err)
		return 1
	}

	logger.Info(ctx, "digest manifest saved", "file", filename, "blocks", len(digests), "output", output)
	return 0
}
