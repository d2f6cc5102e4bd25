package classifier

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
)

// WriteForest encodes f as zstd-compressed JSON.
func WriteForest(w io.Writer, f *Forest) error {
	b, err := sonic.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal forest: %w", err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd: failed to create writer: %w", err)
	}
	if _, err := zw.Write(b); err != nil {
		_ = zw.Close()
		return fmt.Errorf("zstd: failed to compress forest: %w", err)
	}
	return zw.Close()
}

func ReadForest(r io.Reader) (*Forest, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to create reader: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to decompress forest: %w", err)
	}
	var f Forest
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal forest: %w", err)
	}
	if len(f.Trees) == 0 || f.FeatureSize <= 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	for i, t := range f.Trees {
		if t == nil || len(t.Outputs) == 0 {
			return nil, fmt.Errorf("tree %d is empty", i)
		}
	}
	return &f, nil
}
