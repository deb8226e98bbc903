//go:build zstd

package txfs

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

type zstdCodec struct{}

func (zstdCodec) Wrap(w io.WriteCloser) (io.WriteCloser, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return &zstdWriteCloser{zw, w}, nil
}

func (zstdCodec) Unwrap(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}

// zstdWriteCloser closes both the zstd frame and the underlying sink, the
// way squashfs's comp_zstd.go relies on zstd.ZipDecompressor's own Closer.
type zstdWriteCloser struct {
	zw   *zstd.Encoder
	sink io.WriteCloser
}

func (z *zstdWriteCloser) Write(p []byte) (int, error) { return z.zw.Write(p) }

func (z *zstdWriteCloser) Close() error {
	if err := z.zw.Close(); err != nil {
		return err
	}
	return z.sink.Close()
}

func init() {
	RegisterCompCodec(CompZstd, zstdCodec{})
}
