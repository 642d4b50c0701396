// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

// Options holds the configuration a Store is opened or created with. All
// fields have sensible defaults, so the zero value (or a nil *Options
// passed to Open/New) is usable as-is.
type Options struct {
	// WarnFn is the warning-sink collaborator named in the external
	// interface contract. This store, like the original it's grounded on,
	// accepts and stores it without ever invoking it itself; it exists so
	// a caller building on top of covdata has somewhere to wire its own
	// warning pipeline in.
	WarnFn WarnFunc

	// Debug receives internal tracing output. Defaults to NoDebug{}.
	Debug Debug

	// PathAliases is the aliasing Update applies to the other store's
	// paths when Update is called with nil aliases. The writer API
	// (AddLines, AddArcs, AddFileTracers, TouchFiles) does not consult it.
	// Defaults to IdentityAliases{}.
	PathAliases PathAliases

	// NoDisk, when true, keeps the store entirely in memory (the
	// connection opens ":memory:" instead of a real file, and Erase/Close
	// never touch the filesystem). Default: false.
	NoDisk bool

	// WALMode selects journal_mode=WAL instead of the default
	// journal_mode=OFF/synchronous=OFF durability relaxation every store
	// otherwise gets (coverage measurement runs are disposable: a crash
	// mid-run means re-running the instrumented program, not data
	// recovery). Useful for a store read concurrently with writes from
	// another process. Default: false.
	WALMode bool

	// Suffix overrides the automatic hostname.pid.random suffix that
	// NewWithDefaultSuffix appends to the data file name, and is also the
	// suffix New/Open use when called with an empty suffix argument. Leave
	// empty to get the automatic suffix from NewWithDefaultSuffix and no
	// suffix from New/Open.
	Suffix string
}

func (o *Options) debug() Debug {
	if o == nil || o.Debug == nil {
		return NoDebug{}
	}
	return o.Debug
}

func (o *Options) pathAliases() PathAliases {
	if o == nil || o.PathAliases == nil {
		return IdentityAliases{}
	}
	return o.PathAliases
}

func (o *Options) noDisk() bool {
	return o != nil && o.NoDisk
}

func (o *Options) walMode() bool {
	return o != nil && o.WALMode
}

func (o *Options) suffix() string {
	if o == nil {
		return ""
	}
	return o.Suffix
}
