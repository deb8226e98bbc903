//go:build xz

package txfs

import (
	"io"

	"github.com/ulikunitz/xz"
)

type xzCodec struct{}

func (xzCodec) Wrap(w io.WriteCloser) (io.WriteCloser, error) {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return &xzWriteCloser{xw, w}, nil
}

func (xzCodec) Unwrap(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

type xzWriteCloser struct {
	xw   *xz.Writer
	sink io.WriteCloser
}

func (x *xzWriteCloser) Write(p []byte) (int, error) { return x.xw.Write(p) }

func (x *xzWriteCloser) Close() error {
	if err := x.xw.Close(); err != nil {
		return err
	}
	return x.sink.Close()
}

func init() {
	RegisterCompCodec(CompXZ, xzCodec{})
}
