package host

import (
	"errors"
	"os"
	"time"

	streamyerrors "github.com/nodeforge/flowengine/pkg/errors"
)

// OSFileReader is the default FileReader, backed directly by the
// filesystem.
type OSFileReader struct{}

// Read returns the file's contents, translating missing-file and
// permission errors into runtime-typed ExecutionErrors.
func (OSFileReader) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, streamyerrors.NewRuntimeError("", "file not found: "+path, err)
		}
		if errors.Is(err, os.ErrPermission) {
			return nil, streamyerrors.NewRuntimeError("", "permission denied: "+path, err)
		}
		return nil, streamyerrors.NewRuntimeError("", "read file: "+path, err)
	}
	return data, nil
}

// SystemClock is the default Clock, backed by the standard library.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
