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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempModule(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("module "+name), 0o644))

	return path
}

func TestParseSourceIsIdempotent(t *testing.T) {
	ctx := NewContext()
	dir := t.TempDir()
	path := writeTempModule(t, dir, "a.hlt")

	calls := 0
	ctx.RegisterParser(".hlt", func(c *Context, p string) (UID, error) {
		calls++
		uid := UID{Path: p, ID: "A"}
		c.RegisterModule(uid, "global", c.NewNode(c.Root(), &ModuleDecl{ModuleID: "A"}))

		return uid, nil
	})

	uid1, err := ctx.ParseSource(path)
	require.NoError(t, err)

	uid2, err := ctx.ParseSource(path)
	require.NoError(t, err)

	assert.Equal(t, uid1, uid2)
	assert.Equal(t, 1, calls)
}

func TestParseSourceUnknownExtensionFails(t *testing.T) {
	ctx := NewContext()
	dir := t.TempDir()
	path := writeTempModule(t, dir, "a.unknown")

	_, err := ctx.ParseSource(path)
	assert.Error(t, err)
}

func TestImportModuleFailsOnModuleIDMismatch(t *testing.T) {
	ctx := NewContext()
	dir := t.TempDir()
	writeTempModule(t, dir, "notb.hlt")

	ctx.RegisterParser(".hlt", func(c *Context, p string) (UID, error) {
		return UID{Path: p, ID: "B"}, nil
	})

	_, err := ctx.ImportModule("NotB", "", ".hlt", []string{dir})
	assert.Error(t, err)
}

func TestImportModuleSucceedsOnMatchingID(t *testing.T) {
	ctx := NewContext()
	dir := t.TempDir()
	writeTempModule(t, dir, "b.hlt")

	ctx.RegisterParser(".hlt", func(c *Context, p string) (UID, error) {
		return UID{Path: p, ID: "B"}, nil
	})

	uid, err := ctx.ImportModule("B", "", ".hlt", []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "B", uid.ID)
}

func TestImportModuleNotFound(t *testing.T) {
	ctx := NewContext()
	dir := t.TempDir()

	_, err := ctx.ImportModule("Missing", "", ".hlt", []string{dir})
	assert.Error(t, err)
}

func TestDependenciesHasNoDuplicatesAndSupportsTransitiveClosure(t *testing.T) {
	ctx := NewContext()

	a := UID{Path: "a", ID: "A"}
	b := UID{Path: "b", ID: "B"}
	c := UID{Path: "c", ID: "C"}

	ctx.AddDependency(a, b)
	ctx.AddDependency(a, b) // duplicate edge must not appear twice
	ctx.AddDependency(a, c)
	ctx.AddDependency(b, c)

	direct := ctx.Dependencies(a, false)
	assert.ElementsMatch(t, []UID{b, c}, direct)

	transitive := ctx.Dependencies(a, true)
	assert.ElementsMatch(t, []UID{b, c}, transitive)
}
