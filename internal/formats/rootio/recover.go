package rootio

import (
	"errors"
	"io"
	"os"

	"go-hep.org/x/hep/groot/rbytes"
	"go-hep.org/x/hep/groot/riofs"
)

const (
	// fields up to seek-pdir with 32b offsets
	smallKeyHeader = 26
	// same with 64b offsets (key version > 1000)
	bigKeyHeader = 34
	// magic, version, begin and a 64b end
	fileHeader = 4 + 4 + 4 + 8
)

// fileEnd returns the end-of-data position recorded in the file header.
func fileEnd(f *riofs.File) (int64, error) {
	buf := make([]byte, fileHeader)
	if _, err := f.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	r := rbytes.NewRBuffer(buf[4:], nil, 0, nil)
	version := r.ReadI32()
	_ = r.ReadI32() // begin
	if version < 1000000 {
		return int64(r.ReadI32()), r.Err()
	}
	return r.ReadI64(), r.Err()
}

// countRecovered counts the key records written after the recorded end of
// the file. They exist when a writer stopped before updating the header,
// which is what ROOT would have to recover.
func countRecovered(f *riofs.File, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	end, err := fileEnd(f)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if end <= 0 || end >= size {
		return 0, nil
	}

	n := 0
	buf := make([]byte, bigKeyHeader)
	for pos := end; pos < size; {
		m, err := f.ReadAt(buf, pos)
		if err != nil && !errors.Is(err, io.EOF) {
			return n, err
		}
		if m < smallKeyHeader {
			break
		}
		r := rbytes.NewRBuffer(buf[:m], nil, 0, nil)
		nbytes := r.ReadI32()
		if nbytes < 0 {
			// free gap
			pos -= int64(nbytes)
			continue
		}
		version := r.ReadI16()
		_ = r.ReadI32() // objlen
		_ = r.ReadU32() // datime
		keylen := r.ReadI16()
		_ = r.ReadI16() // cycle
		var seekkey int64
		if version > 1000 {
			if m < bigKeyHeader {
				break
			}
			seekkey = r.ReadI64()
		} else {
			seekkey = int64(r.ReadI32())
		}
		if r.Err() != nil || nbytes == 0 || keylen <= 0 || int32(keylen) > nbytes ||
			pos+int64(nbytes) > size || seekkey != pos {
			break
		}
		n++
		pos += int64(nbytes)
	}
	if n == 0 {
		// trailing bytes that do not parse as keys still mean the header
		// was never rewritten
		n = 1
	}
	return n, nil
}
