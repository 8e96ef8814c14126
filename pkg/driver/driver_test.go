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
package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/resolve"
	"github.com/hiltilang/hilti-core/pkg/types"
)

func intQ() *types.QualifiedType {
	return types.NewQualifiedType(types.NewIntType(true, 64), types.NonConst, types.RHS)
}

func newModule(ctx *ast.Context, id string) *ast.Node {
	n := ctx.NewNode(ctx.Root(), &ast.ModuleDecl{Declaration: ast.Declaration{Name: id}, ModuleID: id})
	ctx.RegisterModule(ast.UID{Path: id, ID: id}, "global", n)

	return n
}

func TestProcessASTIsIdempotentOnceResolved(t *testing.T) {
	ctx := ast.NewContext()
	ctx.MarkResolved()

	drv := NewSimpleDriver(Options{})
	err := ProcessAST(ctx, drv, []Plugin{NewHILTIPlugin(nil, nil)})

	assert.NoError(t, err)
}

func TestProcessASTRunsPluginsInOrderAndMarksResolved(t *testing.T) {
	ctx := ast.NewContext()
	module := newModule(ctx, "Mod")
	ctx.NewNode(module, &ast.GlobalVariableDecl{Declaration: ast.Declaration{Name: "x"}, Type: intQ()})

	drv := NewSimpleDriver(Options{})
	plugins := []Plugin{NewSpicyPlugin(nil, nil), NewHILTIPlugin(nil, nil)}

	err := ProcessAST(ctx, drv, plugins)

	require.NoError(t, err)
	assert.True(t, ctx.Resolved())
}

func TestProcessASTSkipValidationBypassesPreChecks(t *testing.T) {
	ctx := ast.NewContext()
	module := newModule(ctx, "Mod")

	fn := ctx.NewNode(module, &ast.FunctionDecl{Declaration: ast.Declaration{Name: "f"}})
	p1 := ctx.NewNode(fn, &ast.ParameterDecl{Declaration: ast.Declaration{Name: "dup"}})
	p2 := ctx.NewNode(fn, &ast.ParameterDecl{Declaration: ast.Declaration{Name: "dup"}})
	fn.Payload.(*ast.FunctionDecl).Parameters = []*ast.Node{p1, p2}

	drv := NewSimpleDriver(Options{SkipValidation: true})
	err := ProcessAST(ctx, drv, []Plugin{NewHILTIPlugin(nil, nil)})

	require.NoError(t, err)
}

func TestProcessASTValidatePreCatchesDuplicateParameterNames(t *testing.T) {
	ctx := ast.NewContext()
	module := newModule(ctx, "Mod")

	fn := ctx.NewNode(module, &ast.FunctionDecl{Declaration: ast.Declaration{Name: "f"}})
	p1 := ctx.NewNode(fn, &ast.ParameterDecl{Declaration: ast.Declaration{Name: "dup"}})
	p2 := ctx.NewNode(fn, &ast.ParameterDecl{Declaration: ast.Declaration{Name: "dup"}})
	fn.Payload.(*ast.FunctionDecl).Parameters = []*ast.Node{p1, p2}

	drv := NewSimpleDriver(Options{})
	err := ProcessAST(ctx, drv, []Plugin{NewHILTIPlugin(nil, nil)})

	require.Error(t, err)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "hilti validate_pre", perr.Stage)
}

func TestProcessASTGlobalOptimizationsRunsAfterPlugins(t *testing.T) {
	ctx := ast.NewContext()
	module := newModule(ctx, "Mod")
	ctx.NewNode(module, &ast.GlobalVariableDecl{Declaration: ast.Declaration{Name: "x"}, Type: intQ()})

	drv := NewSimpleDriver(Options{GlobalOptimizations: true, Features: map[string]bool{}})
	err := ProcessAST(ctx, drv, []Plugin{NewHILTIPlugin(nil, nil)})

	require.NoError(t, err)
	assert.True(t, ctx.Resolved())
}

func TestProcessASTHookCompilationFinishedInvokedPerPlugin(t *testing.T) {
	ctx := ast.NewContext()
	newModule(ctx, "Mod")

	finished := []string{}
	drv := &recordingDriver{SimpleDriver: NewSimpleDriver(Options{}), onFinish: func(name string) { finished = append(finished, name) }}

	plugins := []Plugin{NewSpicyPlugin(nil, nil), NewHILTIPlugin(nil, nil)}
	err := ProcessAST(ctx, drv, plugins)

	require.NoError(t, err)
	assert.Equal(t, []string{"hilti", "spicy"}, finished)
}

type recordingDriver struct {
	*SimpleDriver
	onFinish func(string)
}

func (d *recordingDriver) HookCompilationFinished(p Plugin) {
	d.onFinish(p.Name())
}

func TestProcessErrorErrorMessageReportsOverflowCount(t *testing.T) {
	err := &ProcessError{Stage: "resolve", Errors: []resolve.CollectedError{
		{Message: "first"}, {Message: "second"},
	}}

	assert.Equal(t, "resolve: first (+1 more)", err.Error())
}

func TestProcessErrorErrorMessageFallsBackWhenEmpty(t *testing.T) {
	err := &ProcessError{Stage: "resolve"}
	assert.Equal(t, "resolve: resolution failed", err.Error())
}

func TestSimpleDriverRegisterAndLookupUnit(t *testing.T) {
	ctx := ast.NewContext()
	d := NewSimpleDriver(Options{})

	unit := ctx.NewNode(ctx.Root(), &ast.TypeDecl{Declaration: ast.Declaration{Name: "U"}})
	unit.Payload.(*ast.TypeDecl).SetFullyQualifiedID("Mod.U")

	d.RegisterUnit(unit)

	got, ok := d.LookupUnit(ast.UID{ID: "Mod.U"})
	require.True(t, ok)
	assert.Same(t, unit, got)

	_, ok = d.LookupUnit(ast.UID{ID: "missing"})
	assert.False(t, ok)
}

func TestSimpleDriverRegisterUnitIgnoresNonTypeDecl(t *testing.T) {
	ctx := ast.NewContext()
	d := NewSimpleDriver(Options{})

	n := ctx.NewNode(ctx.Root(), &ast.GlobalVariableDecl{Declaration: ast.Declaration{Name: "x"}})
	d.RegisterUnit(n)

	assert.Empty(t, d.units)
}
