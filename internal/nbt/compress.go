package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Family selects how an encoded document is wrapped on disk.
type Family int

const (
	// FamilyCubic stores a bare gzip stream with no scheme prefix.
	FamilyCubic Family = iota
	// FamilyPrefixed stores one scheme byte (1 gzip, 2 zlib) before the stream.
	FamilyPrefixed
)

// Scheme bytes of FamilyPrefixed.
const (
	SchemeGzip byte = 1
	SchemeZlib byte = 2
)

// ErrUnknownCompression is returned for a FamilyPrefixed payload whose scheme
// byte is neither gzip nor zlib.
var ErrUnknownCompression = errors.New("nbt: unknown compression scheme")

func (f Family) String() string {
	switch f {
	case FamilyCubic:
		return "cubic"
	case FamilyPrefixed:
		return "prefixed"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Compress wraps raw encoded bytes per family. FamilyPrefixed always writes
// the gzip scheme.
func Compress(f Family, raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case FamilyCubic:
	case FamilyPrefixed:
		buf.WriteByte(SchemeGzip)
	default:
		return nil, fmt.Errorf("nbt: compress: unsupported %v", f)
	}
	zw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(zw)
	zw.Reset(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("nbt: gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("nbt: gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress unwraps a stored payload per family.
func Decompress(f Family, data []byte) ([]byte, error) {
	switch f {
	case FamilyCubic:
		return gunzip(data)
	case FamilyPrefixed:
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: empty payload", ErrUnknownCompression)
		}
		switch data[0] {
		case SchemeGzip:
			return gunzip(data[1:])
		case SchemeZlib:
			zr, err := zlib.NewReader(bytes.NewReader(data[1:]))
			if err != nil {
				return nil, fmt.Errorf("nbt: zlib: %w", err)
			}
			defer zr.Close()
			return readAll(zr, "zlib")
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, data[0])
		}
	default:
		return nil, fmt.Errorf("nbt: decompress: unsupported %v", f)
	}
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("nbt: gzip: %w", err)
	}
	defer zr.Close()
	return readAll(zr, "gzip")
}

func readAll(r io.Reader, scheme string) ([]byte, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("nbt: %s: %w", scheme, err)
	}
	return out, nil
}

// Read decompresses and decodes a stored document.
func Read(f Family, data []byte) (Compound, error) {
	raw, err := Decompress(f, data)
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw)
}

// Write encodes and compresses root for storage.
func Write(f Family, root Compound) ([]byte, error) {
	raw, err := Marshal(root)
	if err != nil {
		return nil, err
	}
	return Compress(f, raw)
}
