package upload

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash/adler32"
	"io"
	"os"
)

// Checksums of a local file, formatted the way the catalogue stores them.
type Checksums struct {
	Bytes   int64
	Adler32 string // 8 lowercase hex digits
	MD5     string
}

// ComputeChecksums reads path once, feeding adler32 and md5 together.
func ComputeChecksums(path string) (Checksums, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checksums{}, err
	}
	defer f.Close()
	return checksumReader(f)
}

func checksumReader(r io.Reader) (Checksums, error) {
	a := adler32.New()
	m := md5.New()
	n, err := io.Copy(io.MultiWriter(a, m), r)
	if err != nil {
		return Checksums{}, err
	}
	return Checksums{
		Bytes:   n,
		Adler32: fmt.Sprintf("%08x", a.Sum32()),
		MD5:     hex.EncodeToString(m.Sum(nil)),
	}, nil
}
