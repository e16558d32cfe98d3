package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/logging"
)

// DefaultSQLName is used for SQL locations without a #name fragment.
const DefaultSQLName = "default"

type Options struct {
	S3 S3Options
}

// Open resolves a checkpoint location into a store and the checkpoint name
// inside it.
func Open(ctx context.Context, location string, opts Options, logger logging.Logger) (*Store, string, error) {
	if location == "" {
		return nil, "", fmt.Errorf("%w: empty checkpoint location", common.ErrConfiguration)
	}

	switch {
	case strings.HasPrefix(location, "sqlite://"):
		path, name := splitName(strings.TrimPrefix(location, "sqlite://"))
		if path == "" {
			return nil, "", fmt.Errorf("%w: sqlite checkpoint needs a database path", common.ErrConfiguration)
		}
		backend, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, "", err
		}
		return NewStore(backend, logger), name, nil

	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		dsn, name := splitName(location)
		backend, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, "", err
		}
		return NewStore(backend, logger), name, nil

	case strings.HasPrefix(location, "s3://"):
		bucket, key, _ := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
		if bucket == "" || key == "" {
			return nil, "", fmt.Errorf("%w: s3 checkpoint must look like s3://bucket/key", common.ErrConfiguration)
		}
		backend, err := OpenS3(ctx, bucket, opts.S3)
		if err != nil {
			return nil, "", err
		}
		return NewStore(backend, logger), key, nil

	default:
		return NewStore(NewFileBackend(), logger), location, nil
	}
}

func splitName(location string) (string, string) {
	base, name, ok := strings.Cut(location, "#")
	if !ok || name == "" {
		return base, DefaultSQLName
	}
	return base, name
}
