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
package coerce

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

var engineLog = log.WithField("stream", "coercer")

// Result is the outcome of a successful Coerce call.  Unchanged is true
// when no coercion was needed (spec 4.6, "Coercion idempotence" and
// "success may or may not produce a new expression").
type Result struct {
	Expr      *ast.Node
	Unchanged bool
}

// Error reports why a coercion attempt failed.
type Error struct {
	From *types.QualifiedType
	To   *types.QualifiedType
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot coerce %s to %s: %s", e.From.Underlying().Unification(),
		e.To.Underlying().Unification(), e.Msg)
}

// Engine answers "may X convert to Y?" and produces the converted X,
// applying the ordered rule table of spec 4.6.
type Engine struct {
	ctx *ast.Context
}

// NewEngine constructs a coercion engine that materializes Coerced nodes
// through ctx.
func NewEngine(ctx *ast.Context) *Engine { return &Engine{ctx: ctx} }

// CanCoerce reports whether expr's type may convert to target under
// style, without materializing the conversion.
func (e *Engine) CanCoerce(expr *ast.Node, target *types.QualifiedType, style Style) bool {
	_, err := e.Coerce(expr, target, style)
	return err == nil
}

// Coerce implements the eight ordered rules of spec 4.6; first success wins.
func (e *Engine) Coerce(expr *ast.Node, target *types.QualifiedType, style Style) (Result, error) {
	from := exprTypeOf(expr)
	if from == nil {
		return Result{}, &Error{From: nil, To: target, Msg: "expression has no type yet"}
	}

	// Rule 1: either side auto accepts as a placeholder for later inference.
	if _, ok := from.Type.(*types.AutoType); ok {
		return Result{Expr: expr, Unchanged: true}, nil
	}

	if _, ok := target.Type.(*types.AutoType); ok {
		return Result{Expr: expr, Unchanged: true}, nil
	}

	// Rule 2: two library types with matching cxxname accept unchanged;
	// type IDs are not compared here.
	if fromLib, ok := from.Type.(*types.LibraryType); ok {
		if toLib, ok := target.Type.(*types.LibraryType); ok && fromLib.CxxName == toLib.CxxName {
			return Result{Expr: expr, Unchanged: true}, nil
		}
	}

	// Rule 3: exact structural equality.
	if style.Has(TryExactMatch) && types.Same(from, target) {
		return Result{Expr: expr, Unchanged: true}, nil
	}

	// Rule 4: equal except for constness, under assignment or
	// operand-matching mode.
	if style.Has(TryConstPromotion) && style.Any(Assignment|OperandMatching) &&
		types.SameExceptForConstness(from, target) {
		return Result{Expr: expr, Unchanged: true}, nil
	}

	// Rule 5: wildcard-class match.
	if from.Underlying().Kind() == target.Underlying().Kind() &&
		(from.Underlying().Wildcard() || target.Underlying().Wildcard()) {
		return Result{Expr: expr, Unchanged: true}, nil
	}

	// Rule 6: under Assignment|FunctionCall, promote into optional/result/value_ref.
	if style.Any(Assignment | FunctionCall) {
		if opt, ok := target.Type.(*types.OptionalType); ok && types.Same(from, opt.Elem) {
			return e.wrap(expr, target), nil
		}

		if res, ok := target.Type.(*types.ResultType); ok && types.Same(from, res.Elem) {
			return e.wrap(expr, target), nil
		}

		if vref, ok := target.Type.(*types.ValueReferenceType); ok &&
			!from.Type.IsReferenceType() && types.Same(from, vref.DereferencedType()) {
			return e.wrap(expr, target), nil
		}
	}

	// Rule 7: context- and ctor-specific rules.
	if ok, err := e.contextualRule(expr, from, target, style); ok {
		if err != nil {
			return Result{}, err
		}

		return e.wrap(expr, target), nil
	}

	// Rule 8: a ctor expression is wrapped in a Coerced node under
	// TryCoercion; non-ctor expressions have no type-level coercion hook
	// here and fall through to failure.
	if style.Has(TryCoercion) {
		if _, isCtorExpr := expr.Payload.(*ast.CtorExpr); isCtorExpr {
			return e.wrap(expr, target), nil
		}
	}

	engineLog.Debugf("coercion failed: %s -> %s", from.Underlying().Unification(),
		target.Underlying().Unification())

	return Result{}, &Error{From: from, To: target, Msg: "no applicable coercion rule"}
}

// wrap materializes a CoercedExpr node around expr: if expr is currently
// attached under a parent, the new node takes its place there (spec 9,
// "Mutating visitors": "the standard pattern replaces a child with a new
// node by asking the context to swap it under the parent"); expr itself
// becomes the CoercedExpr's own child. A floating expr (no parent, as
// built by unit-test fixtures) yields a floating CoercedExpr.
func (e *Engine) wrap(expr *ast.Node, target *types.QualifiedType) Result {
	if e.ctx == nil {
		return Result{Expr: expr, Unchanged: false}
	}

	coerced := e.ctx.NewNode(e.ctx.Root(), &ast.CoercedExpr{
		Expression: ast.Expression{Kind: ast.ExprCoerced, Type: target, Resolved: true},
	})
	e.ctx.Detach(coerced)

	if parent := expr.Parent(); parent != nil {
		e.ctx.Replace(expr, coerced)
	}

	e.ctx.Attach(coerced, expr)
	coerced.Payload.(*ast.CoercedExpr).Inner = expr

	return Result{Expr: coerced, Unchanged: false}
}

func exprTypeOf(n *ast.Node) *types.QualifiedType {
	switch p := n.Payload.(type) {
	case *ast.NameExpr:
		return p.Type
	case *ast.MemberExpr:
		return p.Type
	case *ast.CtorExpr:
		return p.Type
	case *ast.AssignExpr:
		return p.Type
	case *ast.LogicalExpr:
		return p.Type
	case *ast.TernaryExpr:
		return p.Type
	case *ast.KeywordExpr:
		return p.Type
	case *ast.DeferredExpr:
		return p.Type
	case *ast.ListComprehensionExpr:
		return p.Type
	case *ast.ResolvedOperatorExpr:
		return p.Type
	case *ast.UnresolvedOperatorExpr:
		return p.Type
	case *ast.PendingCoercedExpr:
		return p.Type
	case *ast.CoercedExpr:
		return p.Type
	case *ast.BuiltInFunctionExpr:
		return p.Type
	case *ast.TypeWrappedExpr:
		return p.Type
	default:
		return nil
	}
}

// contextualRule implements spec 4.6 rule 7's ctor- and context-specific
// conversions.  Returns (true, nil) on success, (true, err) on a
// rule-specific failure that should not fall through to rule 8, and
// (false, nil) when no contextual rule applies.
func (e *Engine) contextualRule(expr *ast.Node, from, target *types.QualifiedType, style Style) (bool, error) {
	// Integer literal width/sign checks.
	if ctor, ok := expr.Payload.(*ast.CtorExpr); ok {
		if intCtor, ok := ctor.Ctor.Payload.(*ast.IntegerCtor); ok {
			if toInt, ok := target.Type.(*types.IntType); ok {
				return e.coerceIntegerLiteral(intCtor, toInt)
			}

			if toReal, ok := target.Type.(*types.RealType); ok {
				_ = toReal

				return true, nil // any integer literal fits exactly into real
			}
		}

		if realCtor, ok := ctor.Ctor.Payload.(*ast.RealCtor); ok {
			if toInt, ok := target.Type.(*types.IntType); ok {
				if realCtor.Value == math.Trunc(realCtor.Value) && toInt.Width >= 2 {
					return true, nil
				}

				return true, &Error{From: from, To: target, Msg: "real literal not exactly representable"}
			}
		}
	}

	// Signed <-> unsigned integer types with range check (non-literal).
	if fromInt, ok := from.Type.(*types.IntType); ok {
		if toInt, ok := target.Type.(*types.IntType); ok && fromInt.Signed != toInt.Signed {
			if toInt.Width == 0 || toInt.Width > fromInt.Width {
				return true, nil
			}
		}

		if toReal, ok := target.Type.(*types.RealType); ok {
			_ = toReal
			return true, nil // integer -> real if exact is assumed for non-literal promotion
		}
	}

	// null -> optional/strong/weak reference.
	if ctor, ok := expr.Payload.(*ast.CtorExpr); ok {
		if _, isNull := ctor.Ctor.Payload.(*ast.NullCtor); isNull {
			switch target.Type.(type) {
			case *types.OptionalType, *types.StrongReferenceType, *types.WeakReferenceType:
				return true, nil
			}
		}
	}

	// bytes -> stream, stream -> view.
	if _, ok := from.Type.(*types.BytesType); ok {
		if _, ok := target.Type.(*types.StreamType); ok {
			return true, nil
		}
	}

	if _, ok := from.Type.(*types.StreamType); ok {
		if _, ok := target.Type.(*types.StreamViewType); ok {
			return true, nil
		}
	}

	// value_ref <-> strong_ref <-> weak_ref with explicit wrapping.
	if isAnyRef(from.Type) && isAnyRef(target.Type) {
		return true, nil
	}

	// enum/interval/time/result/union/reference -> bool under contextual conversion.
	if style.Has(ContextualConversion) {
		if _, ok := target.Type.(*types.BoolType); ok {
			switch from.Type.(type) {
			case *types.EnumType, *types.ResultType, *types.UnionType,
				*types.StrongReferenceType, *types.WeakReferenceType, *types.ValueReferenceType:
				return true, nil
			}
		}
	}

	// tuple -> tuple pointwise.
	if fromTuple, ok := from.Type.(*types.TupleType); ok {
		if toTuple, ok := target.Type.(*types.TupleType); ok {
			return e.coerceTuplePointwise(fromTuple, toTuple)
		}
	}

	// list -> {list, vector, set} pointwise.
	if fromList, ok := from.Type.(*types.ListType); ok {
		switch target.Type.(type) {
		case *types.ListType, *types.VectorType, *types.SetType:
			_ = fromList
			return true, nil
		}
	}

	// struct ctor -> struct/bitfield type.
	if ctor, ok := expr.Payload.(*ast.CtorExpr); ok {
		if sc, ok := ctor.Ctor.Payload.(*ast.StructCtor); ok {
			if toStruct, ok := target.Type.(*types.StructType); ok {
				return e.coerceStructCtor(sc, toStruct)
			}

			if toBitfield, ok := target.Type.(*types.BitfieldType); ok {
				return e.coerceStructCtorToBitfield(sc, toBitfield)
			}
		}
	}

	return false, nil
}

func isAnyRef(t types.UnqualifiedType) bool {
	switch t.(type) {
	case *types.StrongReferenceType, *types.WeakReferenceType, *types.ValueReferenceType:
		return true
	default:
		return false
	}
}

func (e *Engine) coerceIntegerLiteral(ctor *ast.IntegerCtor, target *types.IntType) (bool, error) {
	if target.Interval == nil {
		return true, nil
	}

	lit := ctor.Value

	if target.Signed {
		if ctor.Signed && withinSignedWidth(lit, target.Width) {
			return true, nil
		}
	} else {
		if !ctor.Signed && withinUnsignedWidth(lit, target.Width) {
			return true, nil
		}

		if lit < 0 {
			return true, &Error{Msg: "negative literal cannot coerce into unsigned type"}
		}
	}

	return true, &Error{Msg: fmt.Sprintf("literal %d does not fit in %d-bit target", lit, target.Width)}
}

func withinSignedWidth(v int64, width uint) bool {
	if width == 0 || width >= 64 {
		return true
	}

	min := -(int64(1) << (width - 1))
	max := int64(1)<<(width-1) - 1

	return v >= min && v <= max
}

func withinUnsignedWidth(v int64, width uint) bool {
	if v < 0 {
		return false
	}

	if width == 0 || width >= 64 {
		return true
	}

	max := int64(1)<<width - 1

	return v <= max
}

func (e *Engine) coerceTuplePointwise(from, to *types.TupleType) (bool, error) {
	if len(from.Elements) != len(to.Elements) {
		return true, &Error{Msg: "tuple arity mismatch"}
	}

	for i := range from.Elements {
		if !types.Same(from.Elements[i], to.Elements[i]) &&
			!(from.Elements[i].Underlying().Wildcard() || to.Elements[i].Underlying().Wildcard()) {
			return true, &Error{Msg: fmt.Sprintf("tuple element %d does not coerce", i)}
		}
	}

	return true, nil
}

// coerceStructCtor implements spec 4.6 rule 7 and spec 8's boundary
// behaviors: every ctor field must exist in the target, and every
// omitted target field must be optional/internal/default/function-typed.
func (e *Engine) coerceStructCtor(ctor *ast.StructCtor, target *types.StructType) (bool, error) {
	fieldByName := make(map[string]types.StructField, len(target.Fields))
	for _, f := range target.Fields {
		fieldByName[f.Name] = f
	}

	provided := make(map[string]bool, len(ctor.Fields))

	for _, init := range ctor.Fields {
		if _, ok := fieldByName[init.Name]; !ok {
			return true, &Error{Msg: fmt.Sprintf("field %q not present in target struct", init.Name)}
		}

		provided[init.Name] = true
	}

	for _, f := range target.Fields {
		if provided[f.Name] {
			continue
		}

		if !(f.Optional || f.Internal || f.HasDefault || f.IsFunction) {
			return true, &Error{Msg: fmt.Sprintf("field %q omitted but has no default", f.Name)}
		}
	}

	return true, nil
}

func (e *Engine) coerceStructCtorToBitfield(ctor *ast.StructCtor, target *types.BitfieldType) (bool, error) {
	rangeByName := make(map[string]types.BitRange, len(target.Ranges))
	for _, r := range target.Ranges {
		rangeByName[r.Name] = r
	}

	for _, init := range ctor.Fields {
		if _, ok := rangeByName[init.Name]; !ok {
			return true, &Error{Msg: fmt.Sprintf("bit range %q not present in target bitfield", init.Name)}
		}
	}

	return true, nil
}
