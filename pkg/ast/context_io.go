// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package ast

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseFunc turns one source file into a registered module and returns
// its UID (spec 4.1: "parseSource ... Dispatches to the plugin registered
// for the file's extension").  It is supplied by whichever plugin owns
// path's extension; the external lexer/parser front end behind it is out
// of this core's scope (spec 1).
type ParseFunc func(ctx *Context, path string) (UID, error)

// RegisterParser associates a file extension (".hlt", ".spicy", ...) with
// the plugin hook that parses it, per spec 4.1's dispatch contract.
func (c *Context) RegisterParser(extension string, fn ParseFunc) {
	c.parsers[extension] = fn
}

// ParseSource parses path through the plugin registered for its
// extension.  Idempotent on the normalized path: re-parsing the same
// file returns the cached UID without mutating the AST (spec 4.1).
func (c *Context) ParseSource(path string) (UID, error) {
	norm := normalizePath(path)

	if uid, ok := c.parsed[norm]; ok {
		return uid, nil
	}

	ext := filepath.Ext(norm)

	fn, ok := c.parsers[ext]
	if !ok {
		return UID{}, fmt.Errorf("no plugin registered for extension %q", ext)
	}

	uid, err := fn(c, norm)
	if err != nil {
		return UID{}, fmt.Errorf("parsing %s: %w", norm, err)
	}

	c.parsed[norm] = uid

	return uid, nil
}

// ImportModule locates "<id><ext>" (with id lowercased) within scope,
// normalized against the supplied search directories, and parses it.
// Fails if the located file declares a different module id than
// requested (spec 4.1).
func (c *Context) ImportModule(id, scope, ext string, searchDirs []string) (UID, error) {
	rel := strings.ReplaceAll(scope, ".", string(filepath.Separator))
	filename := strings.ToLower(id) + ext

	var candidate string

	for _, dir := range searchDirs {
		p := filepath.Join(dir, rel, filename)
		if fileExists(p) {
			candidate = p
			break
		}
	}

	if candidate == "" {
		return UID{}, fmt.Errorf("module %q%s not found in scope %q", id, ext, scope)
	}

	uid, err := c.ParseSource(candidate)
	if err != nil {
		return UID{}, err
	}

	if uid.ID != "" && uid.ID != id {
		return UID{}, fmt.Errorf("file %s declares module id %q, expected %q", candidate, uid.ID, id)
	}

	return uid, nil
}

// AddDependency records that module from imports module to, for
// Dependencies' traversal.
func (c *Context) AddDependency(from, to UID) {
	for _, existing := range c.deps[from] {
		if existing == to {
			return
		}
	}

	c.deps[from] = append(c.deps[from], to)
}

// Dependencies returns uid's dependency UIDs, optionally transitively
// closed, with no duplicates (spec 4.1, spec 8 "dependency graph ...
// contains no duplicates").  Available only meaningfully after
// ProcessAST has run the resolver's lazy import resolution.
func (c *Context) Dependencies(uid UID, recursive bool) []UID {
	seen := map[UID]bool{}
	order := []UID{}

	var walk func(UID)
	walk = func(u UID) {
		for _, d := range c.deps[u] {
			if seen[d] {
				continue
			}

			seen[d] = true
			order = append(order, d)

			if recursive {
				walk(d)
			}
		}
	}

	walk(uid)

	return order
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func normalizePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}

	return abs
}
