package automatic

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedLogSuffix marks a log file that is written zstd-compressed.
const CompressedLogSuffix = ".zst"

type zstdFileWriter struct {
	*zstd.Encoder
	f *os.File
}

func (w *zstdFileWriter) Close() error {
	err := w.Encoder.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

type zstdFileReader struct {
	*zstd.Decoder
	f *os.File
}

func (r *zstdFileReader) Close() error {
	r.Decoder.Close()
	return r.f.Close()
}

func createLog(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedLogSuffix) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdFileWriter{Encoder: enc, f: f}, nil
}

func openLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, CompressedLogSuffix) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdFileReader{Decoder: dec, f: f}, nil
}
