package livereport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"

	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// DeadLetterSink receives the events the worker gave up on.
type DeadLetterSink interface {
	Abandon(ev Event, reason string) error
}

// DeadLetter is one abandoned event as stored on disk.
type DeadLetter struct {
	ID       int64          `cbor:"1,keyasint"`
	Action   string         `cbor:"2,keyasint"`
	Target   string         `cbor:"3,keyasint,omitempty"`
	Parent   string         `cbor:"4,keyasint,omitempty"`
	Payload  map[string]any `cbor:"5,keyasint,omitempty"`
	File     string         `cbor:"6,keyasint,omitempty"`
	Reason   string         `cbor:"7,keyasint"`
	At       int64          `cbor:"8,keyasint"` // unix nanoseconds
}

// FileSink appends dead letters to a file. Each record is a CBOR document
// compressed as one LZ4 block and framed by two little-endian uint32: the
// uncompressed and the stored length. A stored length equal to the
// uncompressed one means the block was kept raw.
type FileSink struct {
	Path string

	mu sync.Mutex
}

var cborEnc = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("livereport: CBOR encoder initialization failed: " + err.Error())
	}
	return em
}()

var cborDec = func() cbor.DecMode {
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic("livereport: CBOR decoder initialization failed: " + err.Error())
	}
	return dm
}()

func (s *FileSink) Abandon(ev Event, reason string) error {
	data, err := cborEnc.Marshal(DeadLetter{
		ID:       ev.ID,
		Action:   ev.Action,
		Target:   ev.Target,
		Parent:   ev.Parent,
		Payload:  ev.Payload,
		File:     ev.File,
		Reason:   reason,
		At:       time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode dead letter %d: %w", ev.ID, err)
	}
	block := compressBlock(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(block)))
	_, err = f.Write(append(hdr[:], block...))
	return errors.Join(err, f.Close())
}

func compressBlock(data []byte) []byte {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil || n == 0 || n >= len(data) {
		return data
	}
	return dst[:n]
}

// ReadDeadLetters decodes every record of a FileSink file.
func ReadDeadLetters(path string) ([]DeadLetter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []DeadLetter
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("read dead letter header: %w", err)
		}
		size := binary.LittleEndian.Uint32(hdr[:4])
		stored := binary.LittleEndian.Uint32(hdr[4:])
		block := make([]byte, stored)
		if _, err := io.ReadFull(r, block); err != nil {
			return out, fmt.Errorf("read dead letter block: %w", err)
		}
		data := block
		if stored != size {
			data = make([]byte, size)
			n, err := lz4.UncompressBlock(block, data)
			if err != nil {
				return out, fmt.Errorf("lz4 decompress: %w", err)
			}
			data = data[:n]
		}
		var dl DeadLetter
		if err := cborDec.Unmarshal(data, &dl); err != nil {
			return out, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dl)
	}
}

// logSink only logs; it is the sink of a reporter without a report folder.
type logSink struct{}

func (logSink) Abandon(ev Event, reason string) error {
	logging.Warn("LiveReporting", "Abandoned %s #%d: %s", ev.Action, ev.ID, reason)
	return nil
}
