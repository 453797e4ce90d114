// Package compression wraps file streams in the codecs seaflow's file
// connectors understand. The codec is usually picked from the file
// extension:
//
//	alg := compression.FromPath("orders.jsonl.zst") // compression.Zstd
//	r, err := compression.NewReader(f, alg)
package compression

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/seaflow/pkg/errors"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	None   Algorithm = "none"
	Gzip   Algorithm = "gzip"
	Zstd   Algorithm = "zstd"
	LZ4    Algorithm = "lz4"
	Snappy Algorithm = "snappy"
)

// Level trades speed for ratio
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Best    Level = 9
)

var extensions = map[string]Algorithm{
	".gz":     Gzip,
	".gzip":   Gzip,
	".zst":    Zstd,
	".zstd":   Zstd,
	".lz4":    LZ4,
	".sz":     Snappy,
	".snappy": Snappy,
}

// FromPath returns the algorithm implied by a file extension, or None
func FromPath(path string) Algorithm {
	if alg, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return alg
	}
	return None
}

// Parse parses an algorithm name; the empty string is None
func Parse(s string) (Algorithm, error) {
	switch alg := Algorithm(strings.ToLower(strings.TrimSpace(s))); alg {
	case "":
		return None, nil
	case None, Gzip, Zstd, LZ4, Snappy:
		return alg, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", s)
}

// Extension returns the conventional file suffix, empty for None
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	case Snappy:
		return ".sz"
	}
	return ""
}

// NewReader decompresses r. Closing the result does not close r.
func NewReader(r io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open gzip stream")
		}
		return zr, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open zstd stream")
		}
		return zr.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(s2.NewReader(r)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", alg)
}

// NewWriter compresses into w. Close flushes the codec but does not close w.
func NewWriter(w io.Writer, alg Algorithm, level Level) (io.WriteCloser, error) {
	switch alg {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		zw, err := gzip.NewWriterLevel(w, int(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid gzip level")
		}
		return zw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd writer")
		}
		return zw, nil
	case LZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid lz4 level")
		}
		return zw, nil
	case Snappy:
		return s2.NewWriter(w, s2.WriterSnappyCompat()), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", alg)
}

func zstdLevel(level Level) zstd.EncoderLevel {
	switch {
	case level <= Fastest:
		return zstd.SpeedFastest
	case level >= Best:
		return zstd.SpeedBestCompression
	case level > Default:
		return zstd.SpeedBetterCompression
	}
	return zstd.SpeedDefault
}

func lz4Level(level Level) lz4.CompressionLevel {
	switch {
	case level <= Fastest:
		return lz4.Fast
	case level >= Best:
		return lz4.Level9
	}
	return lz4.Level5
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
