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

// Package scope implements the scope builder (C4): a single pre-order
// pass (each declaration is bound before its children) that populates lexical scopes from declarations, and the scope
// tree itself (ModuleScope for globals/types/functions, LocalScope for
// everything nested inside a function body or hook).
package scope

import (
	"fmt"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/util"
)

// BindingId identifies one binding slot within a scope: a name, plus an
// optional arity distinguishing overloaded functions/operators that share
// a name (mirrors the teacher's BindingId{name, arity}).
type BindingId struct {
	Name  string
	Arity util.Option[uint]
}

// Scope is implemented by both ModuleScope and LocalScope.
type Scope interface {
	// Bind inserts decl under id, returning an error if id is already
	// bound in this scope (not an ancestor).
	Bind(id BindingId, decl *ast.Node) error
	// Bindings returns every declaration node bound directly in this scope.
	Bindings() []*ast.Node
	// IsWithin reports whether this scope is the same as, or nested
	// within, other.
	IsWithin(other Scope) bool
	// IsVisible reports whether id can be resolved by looking up the
	// scope chain starting at this scope.
	IsVisible(id BindingId) bool
	// Lookup walks the scope chain for id, returning the bound
	// declaration and true if found.
	Lookup(id BindingId) (*ast.Node, bool)
}

type boxedBinding struct {
	id   BindingId
	node *ast.Node
}

// ModuleScope is a node in the recursive module scope tree: one
// ModuleScope per module, plus one per nested (Spicy `module`-like)
// submodule scope, mirroring pkg/corset/compiler/scope.go's ModuleScope.
type ModuleScope struct {
	selector  string
	path      string
	ids       map[BindingId]uint
	bindings  []boxedBinding
	parent    *ModuleScope
	submodmap map[string]*ModuleScope
	submodules []*ModuleScope
}

// NewModuleScope constructs a root module scope.
func NewModuleScope(selector string) *ModuleScope {
	return &ModuleScope{
		selector:  selector,
		path:      selector,
		ids:       make(map[BindingId]uint),
		submodmap: make(map[string]*ModuleScope),
	}
}

// OpenDefinition creates (or returns an existing) nested submodule scope,
// used for Spicy's nested declaration contexts.
func (s *ModuleScope) OpenDefinition(name string) *ModuleScope {
	if sub, ok := s.submodmap[name]; ok {
		return sub
	}

	sub := &ModuleScope{
		selector:  name,
		path:      s.path + "." + name,
		ids:       make(map[BindingId]uint),
		parent:    s,
		submodmap: make(map[string]*ModuleScope),
	}
	s.submodmap[name] = sub
	s.submodules = append(s.submodules, sub)

	return sub
}

// CloseDefinition is a no-op placeholder kept for symmetry with
// OpenDefinition; submodule scopes are never detached, only stop being
// the "current" scope during the builder's traversal.
func (s *ModuleScope) CloseDefinition() *ModuleScope { return s.parent }

// Bind implements Scope.
func (s *ModuleScope) Bind(id BindingId, decl *ast.Node) error {
	if _, exists := s.ids[id]; exists {
		return fmt.Errorf("%s already declared in this scope", id.Name)
	}

	s.ids[id] = uint(len(s.bindings))
	s.bindings = append(s.bindings, boxedBinding{id: id, node: decl})

	return nil
}

// Bindings implements Scope.
func (s *ModuleScope) Bindings() []*ast.Node {
	nodes := make([]*ast.Node, len(s.bindings))
	for i, b := range s.bindings {
		nodes[i] = b.node
	}

	return nodes
}

// IsWithin implements Scope.
func (s *ModuleScope) IsWithin(other Scope) bool {
	for cur := Scope(s); cur != nil; {
		if cur == other {
			return true
		}

		ms, ok := cur.(*ModuleScope)
		if !ok || ms.parent == nil {
			return false
		}

		cur = ms.parent
	}

	return false
}

// IsVisible implements Scope.
func (s *ModuleScope) IsVisible(id BindingId) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Lookup implements Scope, walking outward through enclosing module scopes.
func (s *ModuleScope) Lookup(id BindingId) (*ast.Node, bool) {
	if idx, ok := s.ids[id]; ok {
		return s.bindings[idx].node, true
	}

	if id.Arity.HasValue() {
		// Fall back to the arity-less binding id, matching the
		// teacher's innerBind behaviour for non-overloaded lookups.
		if idx, ok := s.ids[BindingId{Name: id.Name}]; ok {
			return s.bindings[idx].node, true
		}
	}

	if s.parent != nil {
		return s.parent.Lookup(id)
	}

	return nil, false
}

// Alias binds an additional name to an already-bound declaration,
// supporting `import A as B`.
func (s *ModuleScope) Alias(alias string, decl *ast.Node) error {
	return s.Bind(BindingId{Name: alias}, decl)
}

// Path returns this scope's dotted path from its module root.
func (s *ModuleScope) Path() string { return s.path }

// LocalScope is a statement/expression-nested scope: function bodies,
// for-loop locals, switch conditions, catch parameters.
type LocalScope struct {
	parent Scope
	locals map[string]*ast.Node
	order  []string
	// isConst marks a scope created for a context (e.g. a constant
	// initializer) where new mutable locals may not be declared.
	isConst bool
}

// NewLocalScope constructs a local scope nested directly under parent.
func NewLocalScope(parent Scope) *LocalScope {
	return &LocalScope{parent: parent, locals: make(map[string]*ast.Node)}
}

// NestedScope creates a child LocalScope, used for nested blocks.
func (s *LocalScope) NestedScope() *LocalScope {
	return NewLocalScope(s)
}

// NestedConstScope creates a child LocalScope flagged as const-only, used
// while resolving a constant initializer.
func (s *LocalScope) NestedConstScope() *LocalScope {
	child := NewLocalScope(s)
	child.isConst = true

	return child
}

// FixContext rebinds this scope's parent, used when a hook body needs to
// see its unit's scope instead of its lexical declaration site.
func (s *LocalScope) FixContext(parent Scope) {
	s.parent = parent
}

// DeclareLocal binds name directly in this scope (locals have no arity).
func (s *LocalScope) DeclareLocal(name string, decl *ast.Node) error {
	return s.Bind(BindingId{Name: name}, decl)
}

// Bind implements Scope.
func (s *LocalScope) Bind(id BindingId, decl *ast.Node) error {
	if _, exists := s.locals[id.Name]; exists {
		return fmt.Errorf("%s already declared in this scope", id.Name)
	}

	s.locals[id.Name] = decl
	s.order = append(s.order, id.Name)

	return nil
}

// Bindings implements Scope.
func (s *LocalScope) Bindings() []*ast.Node {
	nodes := make([]*ast.Node, len(s.order))
	for i, name := range s.order {
		nodes[i] = s.locals[name]
	}

	return nodes
}

// IsWithin implements Scope.
func (s *LocalScope) IsWithin(other Scope) bool {
	var cur Scope = s

	for cur != nil {
		if cur == other {
			return true
		}

		switch v := cur.(type) {
		case *LocalScope:
			cur = v.parent
		case *ModuleScope:
			return v.IsWithin(other)
		default:
			return false
		}
	}

	return false
}

// IsVisible implements Scope.
func (s *LocalScope) IsVisible(id BindingId) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Lookup implements Scope.
func (s *LocalScope) Lookup(id BindingId) (*ast.Node, bool) {
	if n, ok := s.locals[id.Name]; ok {
		return n, true
	}

	if s.parent != nil {
		return s.parent.Lookup(id)
	}

	return nil, false
}
