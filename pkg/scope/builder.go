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
package scope

import (
	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

var builderLog = log.WithField("stream", "ast-declarations")

// Builder runs the single pre-order scope-building pass (spec 4.4).
type Builder struct {
	module *ModuleScope
}

// NewBuilder constructs a scope builder rooted at the given module scope.
func NewBuilder(module *ModuleScope) *Builder {
	return &Builder{module: module}
}

// Build walks n in pre-order, binding each declaration into the nearest
// enclosing scope before visiting its children, and wiring the synthetic
// self/$$ bindings. No type-parameter bindings are made.
func (b *Builder) Build(n *ast.Node) {
	b.walk(n, b.module)
}

func (b *Builder) walk(n *ast.Node, enclosing Scope) {
	if n == nil {
		return
	}

	current := enclosing

	switch p := n.Payload.(type) {
	case *ast.TypeDecl:
		b.bindDecl(enclosing, p.Name, n)
		current = b.scopeForAggregate(n, p.Type, enclosing)
		b.injectEnumLabels(enclosing, n, p.Type)
	case *ast.ConstantDecl:
		b.bindDecl(enclosing, p.Name, n)
	case *ast.GlobalVariableDecl:
		b.bindDecl(enclosing, p.Name, n)
	case *ast.LocalVariableDecl:
		b.bindLocal(enclosing, p.Name, n)
	case *ast.ParameterDecl:
		b.bindLocal(enclosing, p.Name, n)
	case *ast.FunctionDecl:
		b.bindDecl(enclosing, p.Name, n)
		local := NewLocalScope(enclosing)
		n.SetScope(local)
		current = local
	case *ast.FieldDecl:
		b.bindDecl(enclosing, p.Name, n)
	case *ast.UnitHookDecl:
		local := NewLocalScope(enclosing)
		b.injectDollarDollar(n.Context(), local, p)
		n.SetScope(local)
		current = local
	case *ast.ForStmt:
		local := NewLocalScope(enclosing)
		if p.Local != nil {
			if ld, ok := p.Local.Payload.(*ast.LocalVariableDecl); ok {
				_ = local.DeclareLocal(ld.Name, p.Local)
			}
		}
		n.SetScope(local)
		current = local
	case *ast.SwitchStmt:
		local := NewLocalScope(enclosing)
		n.SetScope(local)
		current = local
	}

	for _, child := range n.Children() {
		b.walk(child, current)
	}

	if ts, ok := n.Payload.(*ast.TryStmt); ok {
		b.walkTry(ts, enclosing)
	}
}

// walkTry binds catch-clause parameters explicitly: ast.CatchClause is a
// value type, not a Payload, so it is not reached generically by the
// Payload type-switch in walk.
func (b *Builder) walkTry(ts *ast.TryStmt, enclosing Scope) {
	for _, c := range ts.Catches {
		local := NewLocalScope(enclosing)

		if c.Param != nil {
			if pd, ok := c.Param.Payload.(*ast.ParameterDecl); ok {
				pd.IsCatch = true
				_ = local.DeclareLocal(pd.Name, c.Param)
			}
		}

		c.Body.SetScope(local)
		b.walk(c.Body, local)
	}
}

func (b *Builder) bindDecl(s Scope, name string, n *ast.Node) {
	if err := s.Bind(BindingId{Name: name}, n); err != nil {
		builderLog.Debugf("scope conflict binding %q: %v", name, err)
	}
}

func (b *Builder) bindLocal(s Scope, name string, n *ast.Node) {
	switch ls := s.(type) {
	case *LocalScope:
		if err := ls.DeclareLocal(name, n); err != nil {
			builderLog.Debugf("scope conflict binding local %q: %v", name, err)
		}
	default:
		b.bindDecl(s, name, n)
	}
}

// scopeForAggregate builds the synthetic scope for a struct/unit type:
// inserts `self` into the type's scope (spec 4.4). The type's own
// parameters are not bound there.
func (b *Builder) scopeForAggregate(n *ast.Node, t *types.QualifiedType, enclosing Scope) Scope {
	if t == nil {
		return enclosing
	}

	switch t.Type.(type) {
	case *types.StructType, *types.UnitType:
		local := NewLocalScope(enclosing)
		_ = local.DeclareLocal("self", n)
		n.SetScope(local)

		return local
	default:
		return enclosing
	}
}

// injectEnumLabels binds each label of an enum type directly into the
// declaring module's scope (spec 4.4: "For enum declarations: inject
// each label into the declaring module's scope").
func (b *Builder) injectEnumLabels(enclosing Scope, n *ast.Node, t *types.QualifiedType) {
	if t == nil {
		return
	}

	enum, ok := t.Type.(*types.EnumType)
	if !ok {
		return
	}

	for _, label := range enum.Labels {
		if err := enclosing.Bind(BindingId{Name: label.Name}, n); err != nil {
			builderLog.Debugf("scope conflict binding enum label %q: %v", label.Name, err)
		}
	}
}

// injectDollarDollar binds $$ to a synthetic node carrying the field's
// type where the hook's field context provides one, and leaves it
// unbound otherwise so that a surrounding $$ does not leak into a hook
// that has none of its own (spec 4.4).
func (b *Builder) injectDollarDollar(ctx *ast.Context, local *LocalScope, hook *ast.UnitHookDecl) {
	if hook.Field == "" || hook.Unit == nil || ctx == nil {
		return
	}

	field := fieldNamed(hook.Unit, hook.Field)
	if field == nil {
		return
	}

	// $$ has no real position in the tree; mint it under the root and
	// detach it immediately, the same trick pkg/spicy's lowering pass
	// uses to create synthetic nodes ahead of knowing their final parent.
	placeholder := ctx.NewNode(ctx.Root(), &ast.KeywordExpr{
		Expression: ast.Expression{Kind: ast.ExprKeyword, Type: field.Type, Resolved: true},
		Keyword:    ast.KeywordDollarDollar,
	})
	ctx.Detach(placeholder)

	if err := local.DeclareLocal("$$", placeholder); err != nil {
		builderLog.Debugf("scope conflict binding $$: %v", err)
	}
}

// fieldNamed looks up name among unit's declared fields by walking its
// concrete struct/unit type; unit is the weak DeclRef the hook was bound
// against during lowering/resolution.
func fieldNamed(unit types.DeclRef, name string) *types.StructField {
	td, ok := unit.(*ast.TypeDecl)
	if !ok || td.Type == nil {
		return nil
	}

	var fields []types.StructField

	switch t := td.Type.Underlying().(type) {
	case *types.StructType:
		fields = t.Fields
	case *types.UnitType:
		fields = t.Fields
	default:
		return nil
	}

	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}

	return nil
}
