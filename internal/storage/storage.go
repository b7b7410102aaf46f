package storage

import (
	"errors"
	"io"
)

var ErrInvalidPath = errors.New("invalid path")

type FileInfo struct {
	JobID       string
	Filename    string
	ContentType string
	Size        int64
}

// Storage keeps uploaded videos for the duration of one analysis.
type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	DeleteFile(name string) error
	Path(name string) (string, error)
}
