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
package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceFileFilenameAndContents(t *testing.T) {
	f := NewSourceFile("a.hlt", []byte("module A;"))

	assert.Equal(t, "a.hlt", f.Filename())
	assert.Equal(t, []rune("module A;"), f.Contents())
}

func TestFindFirstEnclosingLineFirstLine(t *testing.T) {
	f := NewSourceFile("a.hlt", []byte("first\nsecond\nthird"))

	line := f.FindFirstEnclosingLine(NewSpan(0, 5))
	assert.Equal(t, 1, line.Number())
	assert.Equal(t, "first", line.String())
}

func TestFindFirstEnclosingLineBeyondEndOfFile(t *testing.T) {
	f := NewSourceFile("a.hlt", []byte("only line"))

	line := f.FindFirstEnclosingLine(NewSpan(100, 100))
	assert.Equal(t, 1, line.Number())
}

func TestSyntaxErrorMessageAndLine(t *testing.T) {
	f := NewSourceFile("a.hlt", []byte("abc\ndef"))

	err := f.SyntaxError(NewSpan(4, 7), "bad token")
	assert.Equal(t, "def", err.FirstEnclosingLine().String())
	assert.Equal(t, "bad token", err.Message())
	assert.Same(t, f, err.SourceFile())
	assert.Contains(t, err.Error(), "bad token")
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.hlt")
	require.NoError(t, os.WriteFile(path, []byte("module A;"), 0o644))

	files, err := ReadFiles(path)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "module A;", string(files[0].Contents()))
}

func TestReadFilesMissingFile(t *testing.T) {
	_, err := ReadFiles("/nonexistent/path/a.hlt")
	assert.Error(t, err)
}
