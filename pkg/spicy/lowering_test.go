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
package spicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

func newModuleWithUnit(ctx *ast.Context, unitName string, fields []*ast.Node) (*ast.Node, *ast.Node) {
	module := ctx.NewNode(ctx.Root(), &ast.ModuleDecl{Declaration: ast.Declaration{Name: "Mod"}, ModuleID: "Mod"})

	var unitFields []types.StructField
	for _, f := range fields {
		fd := f.Payload.(*ast.FieldDecl)
		unitFields = append(unitFields, types.StructField{Name: fd.Name, Type: fd.Type})
	}

	unitT := types.NewUnitType(unitFields)
	qt := types.NewQualifiedType(unitT, types.NonConst, types.RHS)

	td := ctx.NewNode(module, &ast.TypeDecl{Declaration: ast.Declaration{Name: unitName}, Type: qt})
	td.Payload.(*ast.TypeDecl).SetFullyQualifiedID("Mod." + unitName)

	for _, f := range fields {
		ctx.Attach(td, f)
	}

	return module, td
}

func TestLoweringRunPass1LowersUnitTypeIntoStruct(t *testing.T) {
	ctx := ast.NewContext()
	magic := bytesField(ctx, "magic")
	_, td := newModuleWithUnit(ctx, "Foo", []*ast.Node{magic})

	l := NewLowering(ctx)
	changed := l.Run(ctx.Root())

	assert.True(t, changed)

	decl := td.Payload.(*ast.TypeDecl)
	st, ok := decl.Type.Type.(*types.StructType)
	require.True(t, ok)

	// original field plus the four synthetic bookkeeping fields
	assert.Len(t, st.Fields, 5)

	names := map[string]bool{}
	for _, f := range st.Fields {
		names[f.Name] = true
	}
	assert.True(t, names["magic"])
	assert.True(t, names["__offset"])
	assert.True(t, names["__begin"])
	assert.True(t, names["__error"])
	assert.True(t, names["__stop"])
}

func TestLoweringRunPass1GeneratesParseFunctions(t *testing.T) {
	ctx := ast.NewContext()
	magic := bytesField(ctx, "magic")
	module, _ := newModuleWithUnit(ctx, "Foo", []*ast.Node{magic})

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	var fnNames []string
	for _, c := range module.Children() {
		if fd, ok := c.Payload.(*ast.FunctionDecl); ok {
			fnNames = append(fnNames, fd.Name)
		}
	}

	assert.Contains(t, fnNames, "Mod.Foo::parse1")
	assert.Contains(t, fnNames, "Mod.Foo::parse2")
	assert.Contains(t, fnNames, "Mod.Foo::parse3")
	assert.Contains(t, fnNames, "Mod.Foo::__parse_stage2")
}

func TestLoweringRunPass1IsSingleShot(t *testing.T) {
	ctx := ast.NewContext()
	magic := bytesField(ctx, "magic")
	module, _ := newModuleWithUnit(ctx, "Foo", []*ast.Node{magic})

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	before := len(module.Children())

	l.Run(ctx.Root())

	assert.Equal(t, before, len(module.Children()))
}

func TestLoweringRunPass1LowersHookIntoFunction(t *testing.T) {
	ctx := ast.NewContext()
	body := ctx.NewNode(ctx.Root(), &ast.BlockStmt{})
	ctx.Detach(body)

	module := ctx.NewNode(ctx.Root(), &ast.ModuleDecl{Declaration: ast.Declaration{Name: "Mod"}, ModuleID: "Mod"})
	unitT := types.NewUnitType(nil)
	qt := types.NewQualifiedType(unitT, types.NonConst, types.RHS)
	td := ctx.NewNode(module, &ast.TypeDecl{Declaration: ast.Declaration{Name: "Foo"}, Type: qt})
	td.Payload.(*ast.TypeDecl).SetFullyQualifiedID("Mod.Foo")

	hook := ctx.NewNode(td, &ast.UnitHookDecl{HookName: "%done", Body: body})
	ctx.Attach(hook, body)

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	var hookFn *ast.FunctionDecl
	for _, c := range module.Children() {
		if fd, ok := c.Payload.(*ast.FunctionDecl); ok && fd.IsHook {
			hookFn = fd
		}
	}

	require.NotNil(t, hookFn)
	assert.Equal(t, "__on_0x25_done", hookFn.Name)
	assert.Same(t, body, hookFn.Body)
}

func TestLoweringRunPass1LowersUnitCtorIntoStructCtor(t *testing.T) {
	ctx := ast.NewContext()
	magic := bytesField(ctx, "magic")
	module, td := newModuleWithUnit(ctx, "Foo", []*ast.Node{magic})

	unitT := td.Payload.(*ast.TypeDecl).Type

	ctorNode := ctx.NewNode(module, &ast.UnitCtor{Ctor: ast.Ctor{Kind: ast.CtorStruct, Type: unitT}})
	ctorExpr := ctx.NewNode(module, &ast.CtorExpr{Ctor: ctorNode})
	ctx.Attach(ctorExpr, ctorNode)

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	_, ok := ctorNode.Payload.(*ast.StructCtor)
	assert.True(t, ok)
}

func TestLoweringRunPass1LowersSinkTypeReferences(t *testing.T) {
	ctx := ast.NewContext()
	module := ctx.NewNode(ctx.Root(), &ast.ModuleDecl{Declaration: ast.Declaration{Name: "Mod"}, ModuleID: "Mod"})

	sinkT := types.NewQualifiedType(types.NewSinkType(), types.NonConst, types.RHS)
	global := ctx.NewNode(module, &ast.GlobalVariableDecl{Declaration: ast.Declaration{Name: "s"}, Type: sinkT})

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	gd := global.Payload.(*ast.GlobalVariableDecl)
	_, ok := gd.Type.Type.(*types.StrongReferenceType)
	assert.True(t, ok)
}

func TestLoweringRunPass2RewritesPrintStmt(t *testing.T) {
	ctx := ast.NewContext()

	stringT := types.NewQualifiedType(types.NewStringType(), types.NonConst, types.RHS)
	arg := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: stringT}, Path: "x"})

	printStmt := ctx.NewNode(ctx.Root(), &ast.PrintStmt{Args: []*ast.Node{arg}})
	ctx.Attach(printStmt, arg)

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	exprStmt, ok := printStmt.Payload.(*ast.ExpressionStmt)
	require.True(t, ok)

	call, ok := exprStmt.Expr.Payload.(*ast.BuiltInFunctionExpr)
	require.True(t, ok)
	assert.Equal(t, "hilti::print", call.Name)
}

func TestLoweringRunPass2RewritesMultiArgPrintToPrintValues(t *testing.T) {
	ctx := ast.NewContext()

	stringT := types.NewQualifiedType(types.NewStringType(), types.NonConst, types.RHS)
	a1 := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: stringT}, Path: "a"})
	a2 := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: stringT}, Path: "b"})

	printStmt := ctx.NewNode(ctx.Root(), &ast.PrintStmt{Args: []*ast.Node{a1, a2}})
	ctx.Attach(printStmt, a1)
	ctx.Attach(printStmt, a2)

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	exprStmt := printStmt.Payload.(*ast.ExpressionStmt)
	call := exprStmt.Expr.Payload.(*ast.BuiltInFunctionExpr)
	assert.Equal(t, "hilti::printValues", call.Name)
}

func TestLoweringRunPass2RewritesStopIntoAssignAndReturn(t *testing.T) {
	ctx := ast.NewContext()
	stopStmt := ctx.NewNode(ctx.Root(), &ast.StopStmt{})

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	block, ok := stopStmt.Payload.(*ast.BlockStmt)
	require.True(t, ok)
	require.Len(t, block.Body, 2)

	_, isExprStmt := block.Body[0].Payload.(*ast.ExpressionStmt)
	assert.True(t, isExprStmt)

	_, isReturn := block.Body[1].Payload.(*ast.ReturnStmt)
	assert.True(t, isReturn)
}

func TestLoweringRunPass2RewritesConfirmStmt(t *testing.T) {
	ctx := ast.NewContext()
	confirmStmt := ctx.NewNode(ctx.Root(), &ast.ConfirmStmt{})

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	exprStmt, ok := confirmStmt.Payload.(*ast.ExpressionStmt)
	require.True(t, ok)

	call := exprStmt.Expr.Payload.(*ast.BuiltInFunctionExpr)
	assert.Equal(t, "spicy_rt::confirm", call.Name)
}

func TestLoweringRunPass2RewritesRejectStmt(t *testing.T) {
	ctx := ast.NewContext()
	rejectStmt := ctx.NewNode(ctx.Root(), &ast.RejectStmt{})

	l := NewLowering(ctx)
	l.Run(ctx.Root())

	exprStmt := rejectStmt.Payload.(*ast.ExpressionStmt)
	call := exprStmt.Expr.Payload.(*ast.BuiltInFunctionExpr)
	assert.Equal(t, "spicy_rt::reject", call.Name)
}

func TestLoweringRunPass2RewritesUnitOffsetCall(t *testing.T) {
	ctx := ast.NewContext()
	magic := bytesField(ctx, "magic")
	_, td := newModuleWithUnit(ctx, "Foo", []*ast.Node{magic})

	l := NewLowering(ctx)
	l.Run(ctx.Root()) // pass 1 lowers the unit type first

	unitT := td.Payload.(*ast.TypeDecl).Type
	self := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: unitT}, Path: "self"})

	call := ctx.NewNode(ctx.Root(), &ast.UnresolvedOperatorExpr{
		Kind: ast.OpMemberCall, MemberID: "offset", Operands: []*ast.Node{self},
	})
	ctx.Attach(call, self)

	changed := l.Run(ctx.Root())
	assert.True(t, changed)

	member, ok := call.Payload.(*ast.MemberExpr)
	require.True(t, ok)
	assert.Equal(t, "__offset", member.Member)
}

func TestLoweringRunPass2LeavesUnrelatedMemberCallAlone(t *testing.T) {
	ctx := ast.NewContext()

	stringT := types.NewQualifiedType(types.NewStringType(), types.NonConst, types.RHS)
	self := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: stringT}, Path: "s"})

	call := ctx.NewNode(ctx.Root(), &ast.UnresolvedOperatorExpr{
		Kind: ast.OpMemberCall, MemberID: "offset", Operands: []*ast.Node{self},
	})
	ctx.Attach(call, self)

	l := NewLowering(ctx)
	changed := l.Run(ctx.Root())

	_, stillUnresolved := call.Payload.(*ast.UnresolvedOperatorExpr)
	assert.True(t, stillUnresolved)
	assert.False(t, changed)
}

func TestLoweringRunPass3StripsCoercedExprWrapper(t *testing.T) {
	ctx := ast.NewContext()

	intT := types.NewQualifiedType(types.NewIntType(true, 64), types.NonConst, types.RHS)
	inner := ctx.NewNode(ctx.Root(), &ast.NameExpr{Expression: ast.Expression{Type: intT}, Path: "x"})

	coerced := ctx.NewNode(ctx.Root(), &ast.CoercedExpr{Inner: inner})
	ctx.Attach(coerced, inner)

	l := NewLowering(ctx)
	changed := l.Run(ctx.Root())

	assert.True(t, changed)

	ne, ok := coerced.Payload.(*ast.NameExpr)
	require.True(t, ok)
	assert.Equal(t, "x", ne.Path)
}
