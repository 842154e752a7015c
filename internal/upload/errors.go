package upload

import "errors"

var (
	// ErrInputValidation indicates an item was rejected before anything was sent.
	ErrInputValidation = errors.New("input validation failed")
	// ErrRSEWriteBlocked indicates the target RSE refuses writes.
	ErrRSEWriteBlocked = errors.New("rse write blocked")
	// ErrNoFilesUploaded indicates every item failed.
	ErrNoFilesUploaded = errors.New("no files uploaded")
	// ErrNotAllFilesUploaded indicates some items failed.
	ErrNotAllFilesUploaded = errors.New("not all files uploaded")
	// ErrChecksumMismatch indicates the DID exists with a different checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrSizeMismatch indicates the stored object size differs from the local file.
	ErrSizeMismatch = errors.New("size mismatch")
)
