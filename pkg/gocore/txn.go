package pkg

import (
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

const backupSuffix = ".bak"

// WithTransaction backs up every file in paths (typically a table and
// its memo file), runs fn, and either discards the backups on success
// or restores every file from its backup and then removes the backups
// on failure (if the restore itself fails, the backups are left in
// place). Backups and
// restores for multiple files run concurrently via errgroup, but the
// whole operation is still all-or-nothing: the caller never sees fn
// start before every backup has completed, and never sees the error
// returned before every restore has completed.
//
// A panic raised inside fn is recovered, reported as
// ErrInvalidTransactionReturn, and triggers rollback exactly like a
// returned error — this is the only place a panic crosses this
// package's boundary.
func WithTransaction(paths []string, fn func() error) (err error) {
	if len(paths) == 0 {
		return newErr(ErrInvalidHeader, "transaction requires at least one file path")
	}
	metrics := tableMetricsFor(paths[0])

	if backupErr := backupAll(paths); backupErr != nil {
		return backupErr
	}

	defer func() {
		if r := recover(); r != nil {
			err = wrapPanic(r)
		}
		if err != nil {
			if restoreErr := restoreAll(paths); restoreErr != nil {
				err = wrapErr(ErrIO, restoreErr, "transaction failed (%v) and rollback also failed", err)
				metrics.txnRolledBack.Inc()
				return
			}
			metrics.txnRolledBack.Inc()
			if cleanErr := removeBackups(paths); cleanErr != nil {
				err = wrapErr(ErrIO, cleanErr, "transaction rolled back (%v) but removing backups failed", err)
			}
			return
		}
		if cleanErr := removeBackups(paths); cleanErr != nil {
			err = cleanErr
			return
		}
		metrics.txnCommitted.Inc()
	}()

	err = fn()
	return err
}

func wrapPanic(r interface{}) error {
	if e, ok := r.(error); ok {
		return wrapErr(ErrInvalidTransactionReturn, e, "transaction closure panicked")
	}
	return newErr(ErrInvalidTransactionReturn, "transaction closure panicked: %v", r)
}

func backupAll(paths []string) error {
	g := new(errgroup.Group)
	for _, p := range paths {
		p := p
		g.Go(func() error { return copyFile(p, p+backupSuffix) })
	}
	return g.Wait()
}

func restoreAll(paths []string) error {
	g := new(errgroup.Group)
	for _, p := range paths {
		p := p
		g.Go(func() error { return copyFile(p+backupSuffix, p) })
	}
	return g.Wait()
}

func removeBackups(paths []string) error {
	g := new(errgroup.Group)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := os.Remove(p + backupSuffix); err != nil && !os.IsNotExist(err) {
				return wrapErr(ErrIO, err, "remove backup %s", p+backupSuffix)
			}
			return nil
		})
	}
	return g.Wait()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to back up / restore for this path
		}
		return wrapErr(ErrIO, err, "open %s for copy", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return wrapErr(ErrIO, err, "create %s for copy", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return wrapErr(ErrIO, err, "copy %s to %s", src, dst)
	}
	return out.Sync()
}
