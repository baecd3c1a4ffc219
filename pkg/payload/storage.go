package payload

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/ulikunitz/xz"
)

// ReadFile reads a payload or relocator binary from disk. Files ending in
// .xz are decompressed.
func ReadFile(path string) ([]byte, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xz") {
		return os.ReadFile(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("could not open xz stream: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not decompress: %w", err)
	}
	glog.V(1).Infof("Decompressed %s to %d bytes", path, len(data))
	return data, nil
}
