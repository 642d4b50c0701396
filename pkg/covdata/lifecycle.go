// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const defaultBasename = ".coverage"

// lifecycle owns everything about where a Store's data lives on disk and
// when that location needs to change: initial filename selection, the
// default per-process suffix, and fork detection.
type lifecycle struct {
	basename string
	suffix   string
	noDisk   bool

	pid      int
	filename string
}

func newLifecycle(basename, suffix string, noDisk bool) (*lifecycle, error) {
	if basename == "" {
		basename = defaultBasename
	}
	abs, err := filepath.Abs(basename)
	if err != nil {
		return nil, newErr(KindBackendError, err, "lifecycle > resolve basename %q", basename)
	}

	l := &lifecycle{
		basename: abs,
		suffix:   suffix,
		noDisk:   noDisk,
		pid:      os.Getpid(),
	}
	l.chooseFilename()
	return l, nil
}

// chooseFilename recomputes l.filename from the current basename and
// suffix. Called on construction and again whenever fork detection fires.
func (l *lifecycle) chooseFilename() {
	if l.noDisk {
		l.filename = ":memory:"
		return
	}
	name := l.basename
	if l.suffix != "" {
		name += "." + l.suffix
	}
	l.filename = name
}

// defaultSuffix generates the "true"-valued suffix form: a name unique to
// this host, process, and a random component, so that several processes
// writing in parallel never collide on the same file.
func defaultSuffix() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s.%d.%s", host, os.Getpid(), uuid.New().String())
}

// checkFork compares the recorded pid to the current one. On mismatch it
// reports that every cached connection must be invalidated and recomputes
// the filename, so a forked child starts writing to its own file instead
// of an inherited handle. This is the sole inter-process concurrency
// boundary this package provides; see the package-level concurrency
// design notes.
func (l *lifecycle) checkFork() (forked bool) {
	pid := os.Getpid()
	if pid == l.pid {
		return false
	}
	l.pid = pid
	l.chooseFilename()
	return true
}

// erase removes the data file (and, with parallel=true, every sibling
// produced by other suffixed processes sharing this basename).
func (l *lifecycle) erase(parallel bool) error {
	if l.noDisk {
		return nil
	}
	if err := fileBeGone(l.filename); err != nil {
		return err
	}
	if !parallel {
		return nil
	}

	dir, base := filepath.Split(l.basename)
	pattern := filepath.Join(dir, filepath.Base(base)+".*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return newErr(KindBackendError, err, "lifecycle > glob %q", pattern)
	}
	for _, m := range matches {
		if err := fileBeGone(m); err != nil {
			return err
		}
	}
	return nil
}

// fileBeGone removes path, treating "already absent" as success.
func fileBeGone(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return newErr(KindBackendError, err, "lifecycle > remove %q", path)
	}
	return nil
}
