// Copyright (C) 2026 The Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package covdata

import "strings"

// WarnFunc receives a human-readable warning. Callers that already have a
// logging pipeline (see pkg/log) typically wrap log.Warn in a WarnFunc.
type WarnFunc func(message string)

// Debug lets a caller opt specific categories of internal tracing into its
// own log sink without this package depending on any particular logger.
// Categories used internally: "sql", "dataop", "dataio".
type Debug interface {
	Should(category string) bool
	Write(message string)
}

// NoDebug is a Debug that is never interested in anything. It is the
// default collaborator when Options.Debug is left nil.
type NoDebug struct{}

func (NoDebug) Should(string) bool { return false }
func (NoDebug) Write(string)       {}

// LogDebug routes Write through a WarnFunc-shaped sink (typically log.Debug)
// for every category named in Categories, or every category when Categories
// is empty.
type LogDebug struct {
	Sink       func(string)
	Categories map[string]bool
}

func (d LogDebug) Should(category string) bool {
	if len(d.Categories) == 0 {
		return true
	}
	return d.Categories[category]
}

func (d LogDebug) Write(message string) {
	if d.Sink != nil {
		d.Sink(message)
	}
}

// PathAliases canonicalizes file paths before they become catalog keys,
// letting a caller fold together paths that name the same file across
// machines or checkouts (e.g. a build root vs. a source checkout).
type PathAliases interface {
	Map(path string) string
}

// IdentityAliases is a PathAliases that never rewrites anything. It is the
// default collaborator when Options.PathAliases is left nil.
type IdentityAliases struct{}

func (IdentityAliases) Map(path string) string { return path }

// PrefixAliases rewrites any path beginning with a configured prefix to
// start with its replacement instead. Rules are checked in order; the
// first match wins. A path matching no rule is returned unchanged.
type PrefixAliases struct {
	Rules []PrefixRule
}

// PrefixRule is one From->To rewrite rule for PrefixAliases.
type PrefixRule struct {
	From string
	To   string
}

func (p PrefixAliases) Map(path string) string {
	for _, r := range p.Rules {
		if strings.HasPrefix(path, r.From) {
			return r.To + strings.TrimPrefix(path, r.From)
		}
	}
	return path
}
