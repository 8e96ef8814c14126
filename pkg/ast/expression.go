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

import "github.com/hiltilang/hilti-core/pkg/types"

// ExprKind tags which concrete expression payload a node carries.
type ExprKind uint8

const (
	ExprName ExprKind = iota
	ExprMember
	ExprCtor
	ExprAssign
	ExprLogicalAnd
	ExprLogicalOr
	ExprLogicalNot
	ExprTernary
	ExprKeyword
	ExprDeferred
	ExprListComprehension
	ExprResolvedOperator
	ExprUnresolvedOperator
	ExprPendingCoerced
	ExprCoerced
	ExprBuiltInFunction
	ExprTypeWrapped
)

// Expression is the shared payload for every expression-shaped node: a
// qualified type slot filled in by the resolver, a resolved flag, and an
// optional folded constant value (spec 3, "Kind hierarchy").
type Expression struct {
	Kind     ExprKind
	Type     *types.QualifiedType
	Resolved bool
	// Constant holds a folded value once the optimizer's constant-folding
	// visitor (C10) determines this expression is a compile-time
	// constant; nil otherwise.
	Constant any
}

func (*Expression) payloadMarker() {}

// ExprType returns the qualified type recorded on the Expression header;
// promoted to every concrete expression payload through embedding.
func (e *Expression) ExprType() *types.QualifiedType { return e.Type }

// typedPayload is implemented by every expression payload via the
// embedded Expression's promoted ExprType method.
type typedPayload interface {
	ExprType() *types.QualifiedType
}

// ExprType returns n's qualified type if its payload is an expression
// kind, or nil otherwise.  This is the one shared accessor other
// packages (operator, resolve) use instead of re-deriving the same type
// switch the coercer and resolver already carry internally.
func ExprType(n *Node) *types.QualifiedType {
	if n == nil {
		return nil
	}

	if t, ok := n.Payload.(typedPayload); ok {
		return t.ExprType()
	}

	return nil
}

// NameExpr is an unresolved (or resolved-and-cached) identifier reference.
type NameExpr struct {
	Expression
	Path string
	// Decl is set once the resolver's scope lookup succeeds.
	Decl types.DeclRef
}

// MemberExpr is `base.member` / `base.?member` (try-member) access.
type MemberExpr struct {
	Expression
	Base   *Node
	Member string
	Try    bool
}

// CtorExpr wraps a value-constructor node (see ctor.go) as an expression.
type CtorExpr struct {
	Expression
	Ctor *Node
}

// AssignExpr is a plain, index, or member assignment; the resolver
// rewrites map[k]=v and struct const-member=v into more specific forms
// (spec 4.7, "Assignment rewrites") but the generic shape is kept here.
type AssignExpr struct {
	Expression
	Target *Node
	Value  *Node
}

// LogicalExpr covers &&, ||, and unary !.
type LogicalExpr struct {
	Expression
	Lhs *Node
	Rhs *Node // nil for LogicalNot
}

// TernaryExpr is `cond ? a : b`.
type TernaryExpr struct {
	Expression
	Cond *Node
	Then *Node
	Else *Node
}

// KeywordKind enumerates the small set of contextual keyword expressions.
type KeywordKind uint8

const (
	KeywordSelf KeywordKind = iota
	KeywordDollarDollar
	KeywordScope
)

// KeywordExpr is `self`, `$$`, or `scope`.  An unresolved $$ is explicitly
// marked not-found by the scope builder to prevent a surrounding $$ from
// leaking into a hook that has none of its own (spec 4.4).
type KeywordExpr struct {
	Expression
	Keyword  KeywordKind
	NotFound bool
}

// DeferredExpr wraps an expression whose evaluation is postponed to a
// generated closure (used by some hooks and default-argument forms).
type DeferredExpr struct {
	Expression
	Inner *Node
}

// ListComprehensionExpr is `[ e for x in seq if cond ]`-shaped; Element's
// type is inferred from Source's container element type (spec 4.7).
type ListComprehensionExpr struct {
	Expression
	Element *Node
	Local   *Node // LocalVariableDecl
	Source  *Node
	Cond    *Node // optional
}

// ResolvedOperatorExpr is the result of successful operator overload
// resolution: it stores the chosen operator signature together with the
// already-coerced operand expressions.
type ResolvedOperatorExpr struct {
	Expression
	Operator Signature
	Operands []*Node
}

// UnresolvedOperatorExpr is an operator use the resolver has not yet
// (or could not yet) resolve to a single candidate.
type UnresolvedOperatorExpr struct {
	Expression
	Kind     OperatorKind
	Operands []*Node
	// MemberID/BuiltinID are set for Member/Call-shaped operators.
	MemberID  string
	BuiltinID string
}

// PendingCoercedExpr marks an expression awaiting a coercion decision that
// could not be made immediately (e.g. target type itself unresolved).
type PendingCoercedExpr struct {
	Expression
	Inner  *Node
	Target *types.QualifiedType
}

// CoercedExpr is the materialized result of a successful coercion; per
// spec 4.6, "success may or may not produce a new expression" — when a
// coercion is a genuine no-op the engine returns the original node
// unchanged rather than wrapping it here.
type CoercedExpr struct {
	Expression
	Inner *Node
}

// BuiltInFunctionExpr is a call to a compiler-provided built-in (as
// opposed to a resolved user Call operator).
type BuiltInFunctionExpr struct {
	Expression
	Name string
	Args []*Node
}

// TypeWrappedExpr carries a bare type where an expression is
// syntactically expected (e.g. `default<T>`'s T argument).
type TypeWrappedExpr struct {
	Expression
	Wrapped *types.QualifiedType
}

// Signature mirrors operator.Signature without importing pkg/operator,
// which itself needs to reference ast nodes; kept here as the value
// ResolvedOperatorExpr actually stores. pkg/operator.Signature is
// convertible to/from this shape at the resolver boundary.
type Signature struct {
	Kind      OperatorKind
	Namespace string
	Name      string
}

// OperatorKind is the fixed enum of operator kinds from spec 4.3.
type OperatorKind uint8

const (
	OpAdd OperatorKind = iota
	OpBegin
	OpBitAnd
	OpBitOr
	OpBitXor
	OpCall
	OpCast
	OpDecrPostfix
	OpDecrPrefix
	OpIncrPostfix
	OpIncrPrefix
	OpDeref
	OpDivision
	OpEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpIn
	OpIndex
	OpIndexAssign
	OpMember
	OpMemberCall
	OpModulo
	OpMultiple
	OpNegate
	OpNew
	OpPack
	OpUnpack
	OpPower
	OpShiftLeft
	OpShiftRight
	OpSignNeg
	OpSignPos
	OpSize
	OpSum
	OpTryMember
	OpUnequal
	OpUnset
	// OpAssign backs assignment-shaped operators that are not themselves
	// one of the kinds above, e.g. tuple::CustomAssign (spec 4.7,
	// "Assignment rewrites": "tuple-LHS assignments route through the
	// dedicated tuple::CustomAssign operator").
	OpAssign
)
