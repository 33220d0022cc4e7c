package report

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// ArchiveExt is appended to archived log files.
const ArchiveExt = ".zst"

// ArchiveLogs compresses every *.log file below the case directories with
// zstd and removes the original. The campaign log at the top of the tree
// is left alone. It returns the archive paths.
func (t *Tree) ArchiveLogs() ([]string, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()

	var out []string
	err = filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Dir(path) == t.root || !strings.HasSuffix(path, ".log") {
			return nil
		}
		dst, err := compressFile(enc, path)
		if err != nil {
			logging.Warn("Report", "Cannot archive %s: %v", path, err)
			return nil
		}
		out = append(out, dst)
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("failed to archive logs: %w", err)
	}
	logging.Debug("Report", "Archived %d log file(s)", len(out))
	return out, nil
}

func compressFile(enc *zstd.Encoder, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dstPath := path + ArchiveExt
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	enc.Reset(dst)
	if _, err := io.Copy(enc, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", err
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	src.Close()
	return dstPath, os.Remove(path)
}

// ReadArchive returns the decompressed content of an archived log.
func ReadArchive(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
