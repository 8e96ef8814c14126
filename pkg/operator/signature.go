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

// Package operator implements the operator registry (C3): a table of
// operator descriptors with a pending-to-live lifecycle, indexed for
// overload resolution by name, kind, method id, and built-in id.
package operator

import (
	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

// Operand describes one parameter slot of an operator signature (spec 4.3).
type Operand struct {
	Kind     ast.OperandKind
	Type     *types.QualifiedType
	ID       string // optional
	Default  *ast.Node
	Optional bool
}

// ResultFunc computes an operator's result type from its already-coerced
// operands, for operators whose result depends on argument values (e.g.
// `cast<T>` returns T itself).
type ResultFunc func(operands []*ast.Node) *types.QualifiedType

// Signature fully describes one operator instance: spec 4.3's "kind, an
// ordered list of operand descriptors ..., a result type (or a function
// computing it from operands), a namespace label, and a documentation
// string".
type Signature struct {
	Kind       ast.OperatorKind
	Namespace  string
	Name       string
	Operands   []Operand
	Result     *types.QualifiedType
	ResultFunc ResultFunc
	Doc        string

	// MethodID / BuiltinID key MemberCall and built-in Call lookups.
	MethodID  string
	BuiltinID string
}

// EvaluateResult evaluates the signature's result type for a concrete operand list.
func (s *Signature) EvaluateResult(operands []*ast.Node) *types.QualifiedType {
	if s.ResultFunc != nil {
		return s.ResultFunc(operands)
	}

	return s.Result
}

// ToNodeSignature reduces a full registry Signature down to the compact
// summary stored on a resolved-operator expression node (ast.Signature),
// which intentionally carries no operand/result detail so that
// pkg/ast never needs to import pkg/operator.
func (s *Signature) ToNodeSignature() ast.Signature {
	return ast.Signature{Kind: s.Kind, Namespace: s.Namespace, Name: s.Name}
}
