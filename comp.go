package txfs

import (
	"fmt"
	"io"
)

// SnapshotComp identifies the compressor applied to a Snapshot export
// stream. Unlike squashfs's SquashComp (which names the codec that
// decompresses a mounted volume's file data), this names the codec wrapped
// around an entire exported device image (spec.md Non-goals: no on-disk
// block compression, so no SnapshotComp value is ever read by Mount).
type SnapshotComp uint16

const (
	CompNone SnapshotComp = 0
	CompXZ   SnapshotComp = 1
	CompZstd SnapshotComp = 2
)

func (s SnapshotComp) String() string {
	switch s {
	case CompNone:
		return "none"
	case CompXZ:
		return "xz"
	case CompZstd:
		return "zstd"
	}
	return fmt.Sprintf("SnapshotComp(%d)", s)
}

// compressors holds the build-tag-registered codecs, keyed by SnapshotComp.
// Adapted from squashfs's comp_xz.go/comp_zstd.go init()-registration
// pattern: each codec file registers itself only when its build tag is set,
// so a CLI built without "-tags zstd" simply never links klauspost/compress.
var compressors = map[SnapshotComp]CompCodec{
	CompNone: noneCodec{},
}

// CompCodec wraps one exported snapshot stream for writing, and unwraps one
// for reading back during restore.
type CompCodec interface {
	Wrap(w io.WriteCloser) (io.WriteCloser, error)
	Unwrap(r io.Reader) (io.ReadCloser, error)
}

// RegisterCompCodec is called from each codec's build-tag-gated init().
func RegisterCompCodec(c SnapshotComp, codec CompCodec) {
	compressors[c] = codec
}

func lookupCodec(c SnapshotComp) (CompCodec, error) {
	codec, ok := compressors[c]
	if !ok {
		return nil, newErr("Snapshot", NotSupp, fmt.Errorf("compressor %s not registered in this build", c))
	}
	return codec, nil
}

type noneCodec struct{}

func (noneCodec) Wrap(w io.WriteCloser) (io.WriteCloser, error) { return w, nil }
func (noneCodec) Unwrap(r io.Reader) (io.ReadCloser, error)     { return io.NopCloser(r), nil }
