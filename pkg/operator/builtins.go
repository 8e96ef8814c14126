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
package operator

import (
	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

func q(t types.UnqualifiedType) *types.QualifiedType {
	return types.NewQualifiedType(t, types.NonConst, types.RHS)
}

func copyOperand(t *types.QualifiedType) Operand {
	return Operand{Kind: ast.OperandCopy, Type: t}
}

func firstOperandElement(operands []*ast.Node) *types.QualifiedType {
	if len(operands) == 0 {
		return nil
	}

	t := ast.ExprType(operands[0])
	if t == nil {
		return nil
	}

	return t.Underlying().ElementType()
}

func firstOperandDeref(operands []*ast.Node) *types.QualifiedType {
	if len(operands) == 0 {
		return nil
	}

	t := ast.ExprType(operands[0])
	if t == nil {
		return nil
	}

	return t.Underlying().DereferencedType()
}

// RegisterHILTIBuiltins installs the fixed built-in operator set that
// every HILTI (and, by inheritance, Spicy) module can use: arithmetic,
// comparison, container, and reference operators keyed by spec 4.3's
// OperatorKind enum.  Spicy-only constructs (unit/sink member calls) are
// intercepted structurally by the lowering pass (C11) before the
// resolver ever has to look them up here, so they have no registry entry.
func RegisterHILTIBuiltins(r *Registry) {
	boolT := q(types.NewBoolType())
	realT := q(types.NewRealType())
	stringT := q(types.NewStringType())
	bytesT := q(types.NewBytesType())
	sint := q(types.NewWildcardIntType(true))
	uint_ := q(types.NewWildcardIntType(false))

	arithmetic := []struct {
		kind ast.OperatorKind
		name string
	}{
		{ast.OpAdd, "+"}, {ast.OpMultiple, "*"}, {ast.OpDivision, "/"},
		{ast.OpModulo, "%"}, {ast.OpPower, "**"},
	}
	for _, a := range arithmetic {
		for _, t := range []*types.QualifiedType{sint, uint_, realT} {
			if a.kind == ast.OpModulo && t == realT {
				continue
			}
			r.Register(Signature{
				Kind: a.kind, Namespace: "generic", Name: a.name,
				Operands: []Operand{copyOperand(t), copyOperand(t)},
				Result:   t,
			}, nil)
		}
	}

	bitwise := []struct {
		kind ast.OperatorKind
		name string
	}{
		{ast.OpBitAnd, "&"}, {ast.OpBitOr, "|"}, {ast.OpBitXor, "^"},
		{ast.OpShiftLeft, "<<"}, {ast.OpShiftRight, ">>"},
	}
	for _, b := range bitwise {
		for _, t := range []*types.QualifiedType{sint, uint_} {
			r.Register(Signature{
				Kind: b.kind, Namespace: "generic", Name: b.name,
				Operands: []Operand{copyOperand(t), copyOperand(t)},
				Result:   t,
			}, nil)
		}
	}

	comparisons := []struct {
		kind ast.OperatorKind
		name string
	}{
		{ast.OpEqual, "=="}, {ast.OpUnequal, "!="}, {ast.OpGreater, ">"},
		{ast.OpGreaterEqual, ">="}, {ast.OpLess, "<"}, {ast.OpLessEqual, "<="},
	}
	sortable := []*types.QualifiedType{sint, uint_, realT, stringT, bytesT}
	for _, c := range comparisons {
		operands := sortable
		if c.kind == ast.OpEqual || c.kind == ast.OpUnequal {
			operands = append(append([]*types.QualifiedType{}, sortable...), boolT)
		}
		for _, t := range operands {
			r.Register(Signature{
				Kind: c.kind, Namespace: "generic", Name: c.name,
				Operands: []Operand{copyOperand(t), copyOperand(t)},
				Result:   boolT,
			}, nil)
		}
	}

	for _, t := range []*types.QualifiedType{sint, realT} {
		r.Register(Signature{
			Kind: ast.OpSignNeg, Namespace: "generic", Name: "-",
			Operands: []Operand{copyOperand(t)}, Result: t,
		}, nil)
		r.Register(Signature{
			Kind: ast.OpSignPos, Namespace: "generic", Name: "+",
			Operands: []Operand{copyOperand(t)}, Result: t,
		}, nil)
	}

	for _, t := range []*types.QualifiedType{sint, uint_} {
		r.Register(Signature{
			Kind: ast.OpNegate, Namespace: "generic", Name: "~",
			Operands: []Operand{copyOperand(t)}, Result: t,
		}, nil)

		for _, kind := range []ast.OperatorKind{
			ast.OpIncrPrefix, ast.OpIncrPostfix, ast.OpDecrPrefix, ast.OpDecrPostfix,
		} {
			r.Register(Signature{
				Kind: kind, Namespace: "generic", Name: "++/--",
				Operands: []Operand{{Kind: ast.OperandInOut, Type: t}}, Result: t,
			}, nil)
		}
	}

	// Container operators: registered once per wildcard container class,
	// with the element-dependent result computed dynamically.
	containerClasses := []*types.QualifiedType{
		q(types.NewWildcardListType()), q(types.NewWildcardVectorType()), q(types.NewWildcardSetType()),
	}
	for _, c := range containerClasses {
		r.Register(Signature{
			Kind: ast.OpIndex, Namespace: "container", Name: "[]",
			Operands:   []Operand{copyOperand(c), copyOperand(uint_)},
			ResultFunc: firstOperandElement,
		}, nil)
		r.Register(Signature{
			Kind: ast.OpIn, Namespace: "container", Name: "in",
			Operands: []Operand{copyOperand(q(types.NewAutoType())), copyOperand(c)}, Result: boolT,
		}, nil)
		r.Register(Signature{
			Kind: ast.OpSize, Namespace: "container", Name: "size",
			Operands: []Operand{copyOperand(c)}, Result: uint_,
		}, nil)
	}

	mapT := q(types.NewWildcardMapType())
	r.Register(Signature{
		Kind: ast.OpIndex, Namespace: "map", Name: "[]",
		Operands:   []Operand{copyOperand(mapT), copyOperand(q(types.NewAutoType()))},
		ResultFunc: firstOperandElement,
	}, nil)
	r.Register(Signature{
		Kind: ast.OpIndexAssign, Namespace: "map", Name: "[]=",
		Operands: []Operand{{Kind: ast.OperandInOut, Type: mapT}, copyOperand(q(types.NewAutoType())),
			copyOperand(q(types.NewAutoType()))},
		Result: q(types.NewVoidType()),
	}, nil)
	r.Register(Signature{
		Kind: ast.OpIn, Namespace: "map", Name: "in",
		Operands: []Operand{copyOperand(q(types.NewAutoType())), copyOperand(mapT)}, Result: boolT,
	}, nil)
	r.Register(Signature{
		Kind: ast.OpSize, Namespace: "map", Name: "size",
		Operands: []Operand{copyOperand(mapT)}, Result: uint_,
	}, nil)

	r.Register(Signature{
		Kind: ast.OpSize, Namespace: "bytes", Name: "size",
		Operands: []Operand{copyOperand(bytesT)}, Result: uint_,
	}, nil)

	stream := types.NewStreamType()
	streamT := q(stream)
	r.Register(Signature{
		Kind: ast.OpBegin, Namespace: "stream", Name: "begin",
		Operands: []Operand{copyOperand(streamT)}, Result: stream.IteratorType(),
	}, nil)
	r.Register(Signature{
		Kind: ast.OpSize, Namespace: "stream", Name: "size",
		Operands: []Operand{copyOperand(streamT)}, Result: uint_,
	}, nil)

	// Deref applies to optional<*>, result<*>, and the three reference
	// kinds; registered once per wildcard class with a dynamic result.
	r.Register(Signature{
		Kind: ast.OpDeref, Namespace: "optional", Name: "*",
		Operands:   []Operand{copyOperand(q(types.NewOptionalType(q(types.NewAutoType()))))},
		ResultFunc: firstOperandDeref,
	}, nil)
	r.Register(Signature{
		Kind: ast.OpDeref, Namespace: "result", Name: "*",
		Operands:   []Operand{copyOperand(q(types.NewResultType(q(types.NewAutoType()))))},
		ResultFunc: firstOperandDeref,
	}, nil)
	r.Register(Signature{
		Kind: ast.OpDeref, Namespace: "strong_ref", Name: "*",
		Operands:   []Operand{copyOperand(q(types.NewStrongReferenceType(q(types.NewAutoType()))))},
		ResultFunc: firstOperandDeref,
	}, nil)
	r.Register(Signature{
		Kind: ast.OpDeref, Namespace: "weak_ref", Name: "*",
		Operands:   []Operand{copyOperand(q(types.NewWeakReferenceType(q(types.NewAutoType()))))},
		ResultFunc: firstOperandDeref,
	}, nil)
	r.Register(Signature{
		Kind: ast.OpDeref, Namespace: "value_ref", Name: "*",
		Operands:   []Operand{copyOperand(q(types.NewValueReferenceType(q(types.NewAutoType()))))},
		ResultFunc: firstOperandDeref,
	}, nil)

	// Unset: applied to optional<*>, always returns bool.
	r.Register(Signature{
		Kind: ast.OpUnset, Namespace: "optional", Name: "__unset__",
		Operands: []Operand{copyOperand(q(types.NewOptionalType(q(types.NewAutoType()))))}, Result: boolT,
	}, nil)

	// CustomAssign: a tuple-LHS assignment `(a, b) = (x, y)` routes through
	// this operator rather than the plain Assign path, so that per-element
	// constness of the target tuple's components is preserved by the
	// generated assignment code rather than flattened by a single
	// whole-tuple coercion (spec 4.7, "Assignment rewrites"). Tuple arity
	// varies per call site, so the resolver looks this operator up by
	// name rather than by operand matching; the nil-element tuple here is
	// only a placeholder for the signature table.
	tuplePlaceholder := q(types.NewTupleType(nil))
	r.Register(Signature{
		Kind: ast.OpAssign, Namespace: "tuple", Name: "CustomAssign",
		Operands: []Operand{{Kind: ast.OperandInOut, Type: tuplePlaceholder}, copyOperand(tuplePlaceholder)},
		Result:   q(types.NewVoidType()),
	}, nil)
}
