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
	"github.com/hiltilang/hilti-core/pkg/util/source"
)

// Priority classifies an error recorded against a node.  Only the
// highest-observed priority bucket is ever reported to the user; this is
// how cascades of lower-priority follow-on errors get suppressed.
type Priority uint8

const (
	// NoError marks a slot that carries no error.
	NoError Priority = iota
	// Low priority errors are usually suppressed if anything higher exists.
	Low
	// Normal priority is the default for most semantic errors.
	Normal
	// High priority errors always win and always abort the pipeline.
	High
)

// String renders a priority for debug streams.
func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	default:
		return "none"
	}
}

// NodeError is a single error recorded against a node during a pass.
type NodeError struct {
	Message  string
	Priority Priority
	// Span is optional; nothing fills it in when it is nil, and
	// CollectErrors does not read it.
	Span *source.Span
}

// Meta carries everything about a node that is not itself AST structure:
// source location, optional doc comment, and the node's own error list.
type Meta struct {
	File    *source.File
	Span    source.Span
	Doc     string
	errors  []NodeError
}

// AddError records an error against this node's Meta.
func (m *Meta) AddError(message string, priority Priority) {
	m.errors = append(m.errors, NodeError{Message: message, Priority: priority})
}

// Errors returns every error recorded against this node so far.
func (m *Meta) Errors() []NodeError {
	return m.errors
}

// ClearErrors discards all recorded errors; called at the start of every
// resolver round (spec 4.7, step 1).
func (m *Meta) ClearErrors() {
	m.errors = nil
}

// HasErrors reports whether any error has been recorded.
func (m *Meta) HasErrors() bool {
	return len(m.errors) > 0
}

// EnclosingLine back-fills a source line for errors that were recorded
// without a span, using the nearest enclosing line of the node's own span.
func (m *Meta) EnclosingLine() source.Line {
	return m.File.FindFirstEnclosingLine(m.Span)
}
