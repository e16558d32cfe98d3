package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/filex"
)

// FileBackend keeps each key as a file path.
type FileBackend struct{}

func NewFileBackend() *FileBackend {
	return &FileBackend{}
}

func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if os.IsNotExist(err) {
		return nil, common.ErrorNotFound
	}
	return data, err
}

func (b *FileBackend) Put(_ context.Context, objects ...Object) error {
	for _, obj := range objects {
		if err := writeAtomic(obj.Key, obj.Data); err != nil {
			return err
		}
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

// writeAtomic replaces path with data through a synced temp file in the
// same directory and a rename.
func writeAtomic(path string, data []byte) (err error) {
	dir, err := filex.EnsureParentDir(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
