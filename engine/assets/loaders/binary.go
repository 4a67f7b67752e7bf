package loaders

import (
	"fmt"
	"io"
	"os"
)

// BinaryLoader reads a local file as raw bytes, refusing anything above MaxBytes (0 = no limit).
type BinaryLoader struct {
	MaxBytes int64
}

func (bl *BinaryLoader) Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory", path)
	}
	if bl.MaxBytes > 0 && fi.Size() > bl.MaxBytes {
		return nil, fmt.Errorf("'%s' is %d bytes, above the %d byte limit", path, fi.Size(), bl.MaxBytes)
	}

	return io.ReadAll(f)
}
