package cursorwindow

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/sqlcipher/cursorwindow/blobstore"
	"github.com/sqlcipher/cursorwindow/internal/arena"
	"github.com/sqlcipher/cursorwindow/internal/compress"
	"github.com/sqlcipher/cursorwindow/internal/layout"
)

// Compression selects how encoded images are compressed.
type Compression uint8

const (
	CompressionNone = Compression(compress.None)
	CompressionLZ4  = Compression(compress.LZ4)
	CompressionZstd = Compression(compress.Zstd)
	CompressionXZ   = Compression(compress.XZ)
)

func (c Compression) String() string { return compress.Type(c).String() }

// ParseCompression maps "none", "lz4", "zstd" or "xz" to a Compression.
func ParseCompression(name string) (Compression, error) {
	t, err := compress.ParseType(name)
	return Compression(t), err
}

// Image frame:
//
//	magic "CWIN" | version u8 | compression u8 | reserved u16 |
//	image length u32 | payload length u32 | BLAKE3-256 of image (32) | payload
const (
	imageMagic      = "CWIN"
	imageVersion    = 1
	imageFrameSize  = 48
	imageHashOffset = 16
)

// Image returns a copy of the allocated bytes of the window. The copy is a
// complete window on its own since every internal reference is an offset.
func (w *Window) Image() []byte {
	if w.dir == nil {
		return nil
	}
	return bytes.Clone(w.dir.Arena().Used())
}

// OpenImage creates a read-only window over a private copy of image.
func (h *Host) OpenImage(name string, image []byte) (*Window, error) {
	size := len(image)
	if err := h.resources.AcquireMemory(int64(size)); err != nil {
		return nil, translateError(err)
	}
	buf := bytes.Clone(image)

	a, err := arena.Attach(buf, layout.HeaderSize)
	if err != nil {
		h.resources.ReleaseMemory(int64(size))
		return nil, fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}
	dir, err := layout.Open(a)
	if err != nil {
		h.resources.ReleaseMemory(int64(size))
		return nil, fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}

	w := &Window{
		name:     name,
		host:     h,
		backing:  &heapBacking{buf: buf},
		dir:      dir,
		reserved: int64(size),
		readOnly: true,
		logger:   h.logger.WithWindow(name),
	}
	w.logger.Debug("window image opened", "size", size, "rows", dir.NumRows())
	return w, nil
}

// EncodeImage frames a window image with a checksum, compressing it with c.
// The frame records the compression actually used, which is none when c
// does not shrink the image.
func EncodeImage(image []byte, c Compression) ([]byte, error) {
	if uint64(len(image)) > MaxWindowSize {
		return nil, fmt.Errorf("%w: image of %d bytes", ErrOutOfRange, len(image))
	}
	payload, used, err := compress.Compress(compress.Type(c), image)
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(image)

	out := make([]byte, imageFrameSize+len(payload))
	copy(out, imageMagic)
	out[4] = imageVersion
	out[5] = byte(used)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(image)))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(payload)))
	copy(out[imageHashOffset:], sum[:])
	copy(out[imageFrameSize:], payload)
	return out, nil
}

// DecodeImage validates a frame produced by EncodeImage and returns the
// window image. An uncompressed image aliases frame.
func DecodeImage(frame []byte) ([]byte, error) {
	return decodeImage(frame, MaxWindowSize)
}

// decodeImage is DecodeImage for images of at most maxSize bytes.
func decodeImage(frame []byte, maxSize int) ([]byte, error) {
	if len(frame) < imageFrameSize || string(frame[:4]) != imageMagic {
		return nil, fmt.Errorf("%w: bad frame header", ErrCorruptImage)
	}
	if frame[4] != imageVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptImage, frame[4])
	}
	t := compress.Type(frame[5])
	size := binary.LittleEndian.Uint32(frame[8:])
	plen := binary.LittleEndian.Uint32(frame[12:])
	if size < MinWindowSize || uint64(size) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: image of %d bytes outside [%d, %d]", ErrCorruptImage, size, MinWindowSize, maxSize)
	}
	if uint64(len(frame)-imageFrameSize) != uint64(plen) {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorruptImage, len(frame)-imageFrameSize, plen)
	}

	image, err := compress.Decompress(t, frame[imageFrameSize:], int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}
	sum := blake3.Sum256(image)
	if !bytes.Equal(sum[:], frame[imageHashOffset:imageHashOffset+32]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptImage)
	}
	return image, nil
}

// SaveImage encodes the window image and stores it under name.
func (h *Host) SaveImage(ctx context.Context, store blobstore.Store, win *Window, name string, c Compression) error {
	if win.Closed() {
		return fmt.Errorf("%w: window %q is closed", ErrInvalidState, win.Name())
	}
	frame, err := EncodeImage(win.Image(), c)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name, frame); err != nil {
		return fmt.Errorf("save image %q: %w", name, err)
	}
	h.logger.DebugContext(ctx, "window image saved",
		"window", win.Name(),
		"image", name,
		"image_bytes", win.UsedBytes(),
		"frame_bytes", len(frame),
	)
	return nil
}

// LoadImage reads the image stored under name and opens it read-only.
func (h *Host) LoadImage(ctx context.Context, store blobstore.Store, name string) (*Window, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load image %q: %w", name, err)
	}
	defer blob.Close()

	frame, err := blobstore.ReadAll(blob)
	if err != nil {
		return nil, fmt.Errorf("load image %q: %w", name, err)
	}
	image, err := decodeImage(frame, h.maxWindowSize)
	if err != nil {
		return nil, fmt.Errorf("load image %q: %w", name, err)
	}
	// OpenImage copies, so the mapped frame may go away with the blob.
	return h.OpenImage(name, image)
}
