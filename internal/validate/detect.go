package validate

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format names a file format the validator understands.
type Format string

const (
	FormatROOT Format = "root"
	FormatHDF5 Format = "hdf5"
)

var (
	rootMagic = []byte("root")
	hdf5Magic = []byte("\x89HDF\r\n\x1a\n")
)

// Detect picks the format of path by extension, then by content signature.
// Unknown files are treated as ROOT.
func Detect(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".root":
		return FormatROOT
	case ".h5", ".hdf5", ".hdf", ".he5":
		return FormatHDF5
	}

	f, err := os.Open(path)
	if err != nil {
		return FormatROOT
	}
	defer f.Close()
	head := make([]byte, len(hdf5Magic))
	n, _ := io.ReadFull(f, head)
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, hdf5Magic):
		return FormatHDF5
	case bytes.HasPrefix(head, rootMagic):
		return FormatROOT
	default:
		return FormatROOT
	}
}
