package pkg

import (
	"io"
	"os"
)

// posFile is a handle that owns one *os.File exclusively. All access
// is positional (ReadAt/WriteAt); nothing in this package ever calls
// Seek, so concurrent readers of the same handle never race on a
// shared cursor. Every table, memo, and index handle embeds its own
// posFile rather than sharing one.
type posFile struct {
	f    *os.File
	name string
	size int64
}

func createPosFile(path string) (*posFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, wrapErr(ErrIO, err, "create %s", path)
	}
	return &posFile{f: f, name: path}, nil
}

func openPosFile(path string, readOnly bool) (*posFile, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, wrapErr(ErrIO, err, "open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapErr(ErrIO, err, "stat %s", path)
	}
	return &posFile{f: f, name: path, size: info.Size()}, nil
}

func (p *posFile) ReadAt(buf []byte, off int64) error {
	n, err := p.f.ReadAt(buf, off)
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return wrapErr(ErrIO, err, "read %s at %d", p.name, off)
	}
	return nil
}

func (p *posFile) WriteAt(buf []byte, off int64) error {
	n, err := p.f.WriteAt(buf, off)
	if err != nil {
		return wrapErr(ErrIO, err, "write %s at %d", p.name, off)
	}
	if end := off + int64(n); end > p.size {
		p.size = end
	}
	return nil
}

func (p *posFile) Truncate(size int64) error {
	if err := p.f.Truncate(size); err != nil {
		return wrapErr(ErrIO, err, "truncate %s to %d", p.name, size)
	}
	p.size = size
	return nil
}

func (p *posFile) Sync() error {
	if err := p.f.Sync(); err != nil {
		return wrapErr(ErrIO, err, "sync %s", p.name)
	}
	return nil
}

func (p *posFile) Size() int64 { return p.size }

func (p *posFile) Close() error {
	if err := p.f.Close(); err != nil {
		return wrapErr(ErrIO, err, "close %s", p.name)
	}
	return nil
}

func (p *posFile) Fd() uintptr { return p.f.Fd() }

func (p *posFile) Name() string { return p.name }
