// Package compress implements whole-block compression for window images.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Type identifies a compression algorithm. The numeric values are persisted.
type Type uint8

const (
	// None stores the block as is.
	None Type = 0
	// LZ4 is fast and suits pages that are spilled and reloaded often.
	LZ4 Type = 1
	// Zstd gives a better ratio at moderate cost.
	Zstd Type = 2
	// XZ gives the best ratio and is the slowest.
	XZ Type = 3
)

var (
	// ErrUnknownType is returned for an unsupported compression type.
	ErrUnknownType = errors.New("compress: unknown type")
	// ErrSizeMismatch is returned when a block does not decompress to its recorded size.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case XZ:
		return "xz"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseType maps a name such as "zstd" to its Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	case "xz":
		return XZ, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

var zstdEncoderPool sync.Pool

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

// Compress compresses data with t. When compression does not shrink the
// block it is returned unchanged with type None, so callers must persist the
// returned type rather than the requested one.
func Compress(t Type, data []byte) ([]byte, Type, error) {
	if t == None || len(data) == 0 {
		return data, None, nil
	}

	var (
		out []byte
		err error
	)
	switch t {
	case LZ4:
		out, err = compressLZ4(data)
	case Zstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case XZ:
		out, err = compressXZ(data)
	default:
		return nil, None, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if err != nil {
		return nil, None, err
	}
	if len(out) == 0 || len(out) >= len(data) {
		return data, None, nil
	}
	return out, t, nil
}

// lz4MaxRatio bounds how much an lz4 block can expand.
const lz4MaxRatio = 255

// Decompress reverses Compress. size is the uncompressed length. Output
// buffers grow with the data actually decoded, so a size that the payload
// cannot produce fails without allocating size bytes up front.
func Decompress(t Type, data []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrSizeMismatch
	}
	var (
		out []byte
		err error
	)
	switch t {
	case None:
		out = data
	case LZ4:
		if uint64(size) > uint64(len(data))*lz4MaxRatio {
			return nil, ErrSizeMismatch
		}
		out = make([]byte, size)
		var n int
		n, err = lz4.UncompressBlock(data, out)
		out = out[:max(n, 0)]
	case Zstd:
		var dec *zstd.Decoder
		dec, err = zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
		if err == nil {
			out, err = readLimited(dec, len(data), size)
			dec.Close()
		}
	case XZ:
		var r *xz.Reader
		r, err = xz.NewReader(bytes.NewReader(data))
		if err == nil {
			out, err = readLimited(r, len(data), size)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("compress: %s: %w", t, err)
	}
	if len(out) != size {
		return nil, ErrSizeMismatch
	}
	return out, nil
}

// readLimited reads at most size+1 bytes from r. One extra byte detects
// streams longer than recorded.
func readLimited(r io.Reader, compressed, size int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, min(size, 4*compressed+512)))
	if _, err := io.Copy(buf, io.LimitReader(r, int64(size)+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressLZ4(data []byte) ([]byte, error) {
	out := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, out, nil)
	if err != nil {
		return nil, err
	}
	// n == 0 means incompressible.
	return out[:n], nil
}

func compressXZ(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
