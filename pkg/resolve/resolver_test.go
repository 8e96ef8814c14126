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
package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/operator"
	"github.com/hiltilang/hilti-core/pkg/scope"
	"github.com/hiltilang/hilti-core/pkg/types"
)

func intQ() *types.QualifiedType {
	return types.NewQualifiedType(types.NewIntType(true, 64), types.NonConst, types.RHS)
}

func boolQ() *types.QualifiedType {
	return types.NewQualifiedType(types.NewBoolType(), types.NonConst, types.RHS)
}

// nameExpr builds a floating NameExpr node with its type pre-set, the
// shape exprQualifiedType requires to see anything.
func nameExpr(ctx *ast.Context, t *types.QualifiedType) *ast.Node {
	n := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: t, Resolved: true}})
	ctx.Detach(n)

	return n
}

func newTestResolver(ctx *ast.Context) (*Resolver, *operator.Registry, *scope.ModuleScope) {
	reg := operator.NewRegistry()
	mod := scope.NewModuleScope("Mod")

	return NewResolver(ctx, reg, mod), reg, mod
}

func TestResolverResolveNameFindsBinding(t *testing.T) {
	ctx := ast.NewContext()
	r, _, mod := newTestResolver(ctx)

	target := ctx.NewNode(ctx.Root(), &ast.GlobalVariableDecl{Declaration: ast.Declaration{Name: "x"}})
	require.NoError(t, mod.Bind(scope.BindingId{Name: "x"}, target))

	use := ctx.NewNode(ctx.Root(), &ast.NameExpr{Path: "x"})
	use.SetScope(mod)

	nameExprPayload := use.Payload.(*ast.NameExpr)
	changed := r.resolveName(use, nameExprPayload)

	assert.True(t, changed)
	assert.True(t, nameExprPayload.Resolved)
	require.NotNil(t, nameExprPayload.Decl)
	assert.Equal(t, "x", nameExprPayload.Decl.(*ast.Declaration).Name)
}

func TestResolverResolveNameNoopWhenAlreadyResolved(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	decl := &ast.Declaration{Name: "x"}
	use := ctx.NewNode(ctx.Root(), &ast.NameExpr{Path: "x", Decl: decl})

	p := use.Payload.(*ast.NameExpr)
	assert.False(t, r.resolveName(use, p))
}

func TestResolverResolveNameFailsWithoutScope(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	use := ctx.NewNode(ctx.Root(), &ast.NameExpr{Path: "missing"})
	p := use.Payload.(*ast.NameExpr)

	assert.False(t, r.resolveName(use, p))
}

func TestResolverResolveOperatorSingleMatchReplacesPayload(t *testing.T) {
	ctx := ast.NewContext()
	r, reg, _ := newTestResolver(ctx)

	reg.Register(operator.Signature{
		Kind: ast.OpAdd, Namespace: "generic", Name: "+",
		Operands: []operator.Operand{{Type: intQ(), Kind: ast.OperandIn}, {Type: intQ(), Kind: ast.OperandIn}},
		Result:   intQ(),
	}, nil)

	lhs := nameExpr(ctx, intQ())
	rhs := nameExpr(ctx, intQ())

	op := ctx.NewNode(ctx.Root(), &ast.UnresolvedOperatorExpr{Kind: ast.OpAdd, Operands: []*ast.Node{lhs, rhs}})
	ctx.Attach(op, lhs)
	ctx.Attach(op, rhs)

	p := op.Payload.(*ast.UnresolvedOperatorExpr)
	changed := r.resolveOperator(op, p)

	require.True(t, changed)

	resolved, ok := op.Payload.(*ast.ResolvedOperatorExpr)
	require.True(t, ok)
	assert.Equal(t, "+", resolved.Operator.Name)
	assert.True(t, resolved.Resolved)
}

func TestResolverResolveOperatorNoCandidatesFails(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	lhs := nameExpr(ctx, intQ())
	op := ctx.NewNode(ctx.Root(), &ast.UnresolvedOperatorExpr{Kind: ast.OpAdd, Operands: []*ast.Node{lhs}})
	ctx.Attach(op, lhs)

	p := op.Payload.(*ast.UnresolvedOperatorExpr)
	assert.False(t, r.resolveOperator(op, p))

	_, stillUnresolved := op.Payload.(*ast.UnresolvedOperatorExpr)
	assert.True(t, stillUnresolved)
}

func TestResolverResolveOperatorAmbiguousRecordsError(t *testing.T) {
	ctx := ast.NewContext()
	r, reg, _ := newTestResolver(ctx)

	reg.Register(operator.Signature{
		Kind: ast.OpAdd, Namespace: "ns1", Name: "plus1",
		Operands: []operator.Operand{{Type: intQ(), Kind: ast.OperandIn}, {Type: intQ(), Kind: ast.OperandIn}},
		Result:   intQ(),
	}, nil)
	reg.Register(operator.Signature{
		Kind: ast.OpAdd, Namespace: "ns2", Name: "plus2",
		Operands: []operator.Operand{{Type: intQ(), Kind: ast.OperandIn}, {Type: intQ(), Kind: ast.OperandIn}},
		Result:   intQ(),
	}, nil)

	lhs := nameExpr(ctx, intQ())
	rhs := nameExpr(ctx, intQ())
	op := ctx.NewNode(ctx.Root(), &ast.UnresolvedOperatorExpr{Kind: ast.OpAdd, Operands: []*ast.Node{lhs, rhs}})
	ctx.Attach(op, lhs)
	ctx.Attach(op, rhs)

	p := op.Payload.(*ast.UnresolvedOperatorExpr)
	assert.False(t, r.resolveOperator(op, p))
	assert.True(t, op.HasErrors())
}

func TestResolverResolveAssignmentRewritesTarget(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	target := nameExpr(ctx, intQ())
	value := nameExpr(ctx, intQ())

	assign := ctx.NewNode(ctx.Root(), &ast.AssignExpr{Target: target, Value: value})
	ctx.Attach(assign, target)
	ctx.Attach(assign, value)

	p := assign.Payload.(*ast.AssignExpr)
	changed := r.resolveAssignment(assign, p)

	assert.True(t, changed)
	assert.True(t, p.Resolved)
	assert.NotNil(t, p.Type)
}

func TestResolverResolveAssignmentFailsWithoutTargetType(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	target := ctx.NewNode(ctx.Root(), &ast.NameExpr{Path: "unresolved"})
	ctx.Detach(target)
	value := nameExpr(ctx, intQ())

	assign := ctx.NewNode(ctx.Root(), &ast.AssignExpr{Target: target, Value: value})
	ctx.Attach(assign, target)
	ctx.Attach(assign, value)

	p := assign.Payload.(*ast.AssignExpr)
	assert.False(t, r.resolveAssignment(assign, p))
}

func TestResolverPropagateAutoFromInitializer(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	autoT := types.NewQualifiedType(types.NewAutoType(), types.NonConst, types.RHS)
	elemType := intQ()
	init := nameExpr(ctx, elemType)

	changed := r.propagateAuto(autoT, init)

	assert.True(t, changed)
	assert.Same(t, elemType.Type, autoT.Type)
}

func TestResolverPropagateAutoNoopWhenNotAuto(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	target := intQ()
	init := nameExpr(ctx, boolQ())

	assert.False(t, r.propagateAuto(target, init))
}

func TestResolverInferFunctionReturnAutoFindsReturnValue(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	autoResult := types.NewQualifiedType(types.NewAutoType(), types.NonConst, types.RHS)
	fnType := types.NewFunctionType(nil, autoResult)

	val := nameExpr(ctx, intQ())
	ret := ctx.NewNode(ctx.Root(), &ast.ReturnStmt{Value: val})
	ctx.Attach(ret, val)

	body := ctx.NewNode(ctx.Root(), &ast.BlockStmt{Body: []*ast.Node{ret}})
	ctx.Attach(body, ret)

	fn := &ast.FunctionDecl{Type: fnType, Body: body}

	changed := r.inferFunctionReturnAuto(fn)

	assert.True(t, changed)
	assert.Equal(t, types.KindInteger, fn.Type.Result.Type.Kind())
}

func TestResolverInferFunctionReturnAutoNoopWithoutReturn(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	autoResult := types.NewQualifiedType(types.NewAutoType(), types.NonConst, types.RHS)
	fnType := types.NewFunctionType(nil, autoResult)

	body := ctx.NewNode(ctx.Root(), &ast.BlockStmt{})
	fn := &ast.FunctionDecl{Type: fnType, Body: body}

	assert.False(t, r.inferFunctionReturnAuto(fn))
}

func TestResolverResolveCtorTuple(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	e1 := nameExpr(ctx, intQ())
	e2 := nameExpr(ctx, boolQ())

	tupleCtor := ctx.NewNode(ctx.Root(), &ast.TupleCtor{Elements: []*ast.Node{e1, e2}})
	ctx.Detach(tupleCtor)

	n := ctx.NewNode(ctx.Root(), &ast.CtorExpr{Ctor: tupleCtor})
	ctx.Attach(n, tupleCtor)
	ctx.Attach(n, e1)
	ctx.Attach(n, e2)

	p := n.Payload.(*ast.CtorExpr)
	changed := r.resolveCtor(n, p)

	require.True(t, changed)
	tt, ok := p.Type.Type.(*types.TupleType)
	require.True(t, ok)
	assert.Len(t, tt.Elements, 2)
}

func TestResolverResolveCtorListHomogeneous(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	e1 := nameExpr(ctx, intQ())
	e2 := nameExpr(ctx, intQ())

	listCtor := ctx.NewNode(ctx.Root(), &ast.ListCtor{Elements: []*ast.Node{e1, e2}})
	ctx.Detach(listCtor)

	n := ctx.NewNode(ctx.Root(), &ast.CtorExpr{Ctor: listCtor})
	ctx.Attach(n, listCtor)

	p := n.Payload.(*ast.CtorExpr)
	changed := r.resolveCtor(n, p)

	require.True(t, changed)
	_, ok := p.Type.Type.(*types.ListType)
	assert.True(t, ok)
}

func TestResolverResolveCtorListMixedTypesFailsGracefully(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	e1 := nameExpr(ctx, intQ())
	e2 := nameExpr(ctx, boolQ())

	listCtor := ctx.NewNode(ctx.Root(), &ast.ListCtor{Elements: []*ast.Node{e1, e2}})
	ctx.Detach(listCtor)

	n := ctx.NewNode(ctx.Root(), &ast.CtorExpr{Ctor: listCtor})
	ctx.Attach(n, listCtor)

	p := n.Payload.(*ast.CtorExpr)
	assert.False(t, r.resolveCtor(n, p))
	assert.Nil(t, p.Type)
}

func TestResolverResolveCtorStruct(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	val := nameExpr(ctx, intQ())
	structCtor := ctx.NewNode(ctx.Root(), &ast.StructCtor{
		Fields: []ast.StructFieldInit{{Name: "x", Value: val}},
	})
	ctx.Detach(structCtor)

	n := ctx.NewNode(ctx.Root(), &ast.CtorExpr{Ctor: structCtor})
	ctx.Attach(n, structCtor)

	p := n.Payload.(*ast.CtorExpr)
	changed := r.resolveCtor(n, p)

	require.True(t, changed)
	st, ok := p.Type.Type.(*types.StructType)
	require.True(t, ok)
	require.Len(t, st.Fields, 1)
	assert.Equal(t, "x", st.Fields[0].Name)
}

func TestResolverResolveForLoopLocalTypesFromIterator(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	listT := types.NewQualifiedType(types.NewListType(intQ()), types.NonConst, types.RHS)
	seq := nameExpr(ctx, listT)

	local := ctx.NewNode(ctx.Root(), &ast.LocalVariableDecl{Declaration: ast.Declaration{Name: "item"}})
	ctx.Detach(local)

	forStmt := ctx.NewNode(ctx.Root(), &ast.ForStmt{Local: local, Sequence: seq})
	ctx.Attach(forStmt, local)
	ctx.Attach(forStmt, seq)

	p := forStmt.Payload.(*ast.ForStmt)
	changed := r.resolveForLoopLocal(forStmt, p)

	require.True(t, changed)
	ld := local.Payload.(*ast.LocalVariableDecl)
	assert.NotNil(t, ld.Type)
}

func TestResolverResolveListComprehensionTypesElement(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	listT := types.NewQualifiedType(types.NewListType(intQ()), types.NonConst, types.RHS)
	source := nameExpr(ctx, listT)

	local := ctx.NewNode(ctx.Root(), &ast.LocalVariableDecl{Declaration: ast.Declaration{Name: "x"}})
	ctx.Detach(local)

	lc := ctx.NewNode(ctx.Root(), &ast.ListComprehensionExpr{Local: local, Source: source})
	ctx.Attach(lc, local)
	ctx.Attach(lc, source)

	p := lc.Payload.(*ast.ListComprehensionExpr)
	changed := r.resolveListComprehension(lc, p)

	require.True(t, changed)
	ld := local.Payload.(*ast.LocalVariableDecl)
	assert.NotNil(t, ld.Type)
}

func TestResolverResolveSwitchCoercesCaseLiterals(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	cond := nameExpr(ctx, intQ())
	caseExpr := nameExpr(ctx, intQ())

	sw := ctx.NewNode(ctx.Root(), &ast.SwitchStmt{
		Cond:  cond,
		Cases: []ast.SwitchCase{{Exprs: []*ast.Node{caseExpr}}},
	})
	ctx.Attach(sw, cond)
	ctx.Attach(sw, caseExpr)

	p := sw.Payload.(*ast.SwitchStmt)
	// Cases are already exact-matching, so no coercion is materialized;
	// the call should simply not error or panic.
	assert.False(t, r.resolveSwitch(sw, p))
}

func TestResolverCoerceToBoolNoopWhenAlreadyBool(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	cond := nameExpr(ctx, boolQ())
	newCond, changed := r.coerceToBool(cond)
	assert.False(t, changed)
	assert.Same(t, cond, newCond)
	assert.False(t, cond.HasErrors())
}

func TestResolverCoerceToBoolNilIsNoop(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	newCond, changed := r.coerceToBool(nil)
	assert.False(t, changed)
	assert.Nil(t, newCond)
}

func TestResolverResolveAssignmentRewritesIndexTargetToIndexAssign(t *testing.T) {
	ctx := ast.NewContext()
	r, reg, _ := newTestResolver(ctx)

	mapQ := types.NewQualifiedType(types.NewMapType(intQ(), intQ()), types.NonConst, types.RHS)

	reg.Register(operator.Signature{
		Kind: ast.OpIndexAssign, Namespace: "map", Name: "[]=",
		Operands: []operator.Operand{
			{Kind: ast.OperandInOut, Type: mapQ},
			{Kind: ast.OperandIn, Type: intQ()},
			{Kind: ast.OperandIn, Type: intQ()},
		},
		Result: types.NewQualifiedType(types.NewVoidType(), types.NonConst, types.RHS),
	}, nil)

	mapExpr := nameExpr(ctx, mapQ)
	keyExpr := nameExpr(ctx, intQ())

	index := &ast.ResolvedOperatorExpr{
		Expression: ast.Expression{Type: intQ(), Resolved: true},
		Operator:   ast.Signature{Kind: ast.OpIndex, Namespace: "map", Name: "[]"},
		Operands:   []*ast.Node{mapExpr, keyExpr},
	}
	target := ctx.NewNode(ctx.Root(), index)
	ctx.Attach(target, mapExpr)
	ctx.Attach(target, keyExpr)

	value := nameExpr(ctx, intQ())

	assign := ctx.NewNode(ctx.Root(), &ast.AssignExpr{Target: target, Value: value})
	ctx.Attach(assign, target)
	ctx.Attach(assign, value)

	p := assign.Payload.(*ast.AssignExpr)
	changed := r.resolveAssignment(assign, p)

	require.True(t, changed)

	resolved, ok := assign.Payload.(*ast.ResolvedOperatorExpr)
	require.True(t, ok, "assignment must be rewritten into an IndexAssign ResolvedOperatorExpr")
	assert.Equal(t, "[]=", resolved.Operator.Name)
	require.Len(t, resolved.Operands, 3)
	assert.Same(t, mapExpr, resolved.Operands[0])
	assert.Same(t, keyExpr, resolved.Operands[1])
	assert.Same(t, value, resolved.Operands[2])
}

func TestResolverResolveAssignmentRewritesConstStructMemberToNonConst(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	constIntQ := types.NewQualifiedType(types.NewIntType(true, 64), types.Const, types.RHS)

	base := nameExpr(ctx, intQ())
	member := &ast.MemberExpr{
		Expression: ast.Expression{Type: constIntQ, Resolved: true},
		Base:       base,
		Member:     "field",
	}
	target := ctx.NewNode(ctx.Root(), member)
	ctx.Attach(target, base)

	value := nameExpr(ctx, intQ())

	assign := ctx.NewNode(ctx.Root(), &ast.AssignExpr{Target: target, Value: value})
	ctx.Attach(assign, target)
	ctx.Attach(assign, value)

	p := assign.Payload.(*ast.AssignExpr)
	changed := r.resolveAssignment(assign, p)

	require.True(t, changed)
	assert.True(t, p.Resolved)

	rewritten, ok := target.Payload.(*ast.MemberExpr)
	require.True(t, ok)
	assert.Equal(t, types.NonConst, rewritten.Type.Const)
	assert.Equal(t, types.NonConst, p.Type.Const)
}

func TestResolverResolveAssignmentRewritesTupleTargetToCustomAssign(t *testing.T) {
	ctx := ast.NewContext()
	r, reg, _ := newTestResolver(ctx)

	reg.Register(operator.Signature{
		Kind: ast.OpAssign, Namespace: "tuple", Name: "CustomAssign",
		Operands: []operator.Operand{
			{Kind: ast.OperandInOut, Type: intQ()},
			{Kind: ast.OperandIn, Type: intQ()},
		},
		Result: types.NewQualifiedType(types.NewVoidType(), types.NonConst, types.RHS),
	}, nil)

	e1 := nameExpr(ctx, intQ())
	e2 := nameExpr(ctx, boolQ())
	tupleQ := types.NewQualifiedType(types.NewTupleType([]*types.QualifiedType{intQ(), boolQ()}), types.NonConst, types.RHS)

	tupleCtor := ctx.NewNode(ctx.Root(), &ast.TupleCtor{Ctor: ast.Ctor{Kind: ast.CtorTuple, Type: tupleQ}, Elements: []*ast.Node{e1, e2}})
	ctx.Detach(tupleCtor)
	ctx.Attach(tupleCtor, e1)
	ctx.Attach(tupleCtor, e2)

	target := ctx.NewNode(ctx.Root(), &ast.CtorExpr{
		Expression: ast.Expression{Type: tupleQ, Resolved: true},
		Ctor:       tupleCtor,
	})
	ctx.Attach(target, tupleCtor)

	value := nameExpr(ctx, tupleQ)

	assign := ctx.NewNode(ctx.Root(), &ast.AssignExpr{Target: target, Value: value})
	ctx.Attach(assign, target)
	ctx.Attach(assign, value)

	p := assign.Payload.(*ast.AssignExpr)
	changed := r.resolveAssignment(assign, p)

	require.True(t, changed)

	resolved, ok := assign.Payload.(*ast.ResolvedOperatorExpr)
	require.True(t, ok, "tuple-target assignment must be rewritten into a CustomAssign ResolvedOperatorExpr")
	assert.Equal(t, "CustomAssign", resolved.Operator.Name)
	require.Len(t, resolved.Operands, 2)
	assert.Same(t, target, resolved.Operands[0])
}

func TestResolverResolveImportRegistersUID(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	uid := ast.UID{Path: "/a/dep.hlt", ID: "Dep"}
	depModule := ctx.NewNode(ctx.Root(), &ast.ModuleDecl{Declaration: ast.Declaration{Name: "Dep"}, ModuleID: "Dep"})
	ctx.RegisterModule(uid, "global", depModule)

	imp := ctx.NewNode(ctx.Root(), &ast.ImportedModuleDecl{TargetID: "Dep", Scope: "global"})
	p := imp.Payload.(*ast.ImportedModuleDecl)

	changed := r.resolveImport(imp, p)

	assert.True(t, changed)
	assert.True(t, p.Resolved)
	assert.Equal(t, "Dep", p.UID.ID)
}

func TestResolverResolveImportNoopWhenModuleMissing(t *testing.T) {
	ctx := ast.NewContext()
	r, _, _ := newTestResolver(ctx)

	imp := ctx.NewNode(ctx.Root(), &ast.ImportedModuleDecl{TargetID: "Missing", Scope: "global"})
	p := imp.Payload.(*ast.ImportedModuleDecl)

	assert.False(t, r.resolveImport(imp, p))
	assert.False(t, p.Resolved)
}

func TestResolverResolveEndToEndReachesFixedPointWithoutErrors(t *testing.T) {
	ctx := ast.NewContext()

	reg := operator.NewRegistry()
	operator.RegisterHILTIBuiltins(reg)
	mod := scope.NewModuleScope("Mod")

	module := ctx.NewNode(ctx.Root(), &ast.ModuleDecl{Declaration: ast.Declaration{Name: "Mod"}, ModuleID: "Mod"})
	ctx.NewNode(module, &ast.GlobalVariableDecl{Declaration: ast.Declaration{Name: "x"}, Type: intQ()})

	r := NewResolver(ctx, reg, mod)
	err := r.Resolve(module, true)

	require.NoError(t, err)
	assert.Equal(t, Resolved, r.State)
}

func TestResolverResolveSetsErroredStateOnFailure(t *testing.T) {
	ctx := ast.NewContext()

	reg := operator.NewRegistry()
	mod := scope.NewModuleScope("Mod")

	module := ctx.NewNode(ctx.Root(), &ast.ModuleDecl{Declaration: ast.Declaration{Name: "Mod"}, ModuleID: "Mod"})

	// A bool-typed value can never coerce into an int-typed target under
	// any assignment style, so this AssignExpr fails identically every
	// round and its error survives to the end of the fixed-point loop.
	target := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: intQ(), Resolved: true}})
	ctx.Detach(target)
	value := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: boolQ(), Resolved: true}})
	ctx.Detach(value)

	assign := ctx.NewNode(module, &ast.AssignExpr{Target: target, Value: value})
	ctx.Attach(assign, target)
	ctx.Attach(assign, value)

	r := NewResolver(ctx, reg, mod)
	err := r.Resolve(module, true)

	require.Error(t, err)
	assert.Equal(t, Errored, r.State)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.NotEmpty(t, resErr.Errors)
}
