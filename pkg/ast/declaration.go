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

// Linkage controls a declaration's visibility across module boundaries.
type Linkage uint8

const (
	Init Linkage = iota
	PreInit
	Struct
	Private
	Public
)

// DeclKind tags which concrete declaration payload a node carries.
type DeclKind uint8

const (
	DeclModule DeclKind = iota
	DeclImportedModule
	DeclType
	DeclConstant
	DeclGlobalVariable
	DeclLocalVariable
	DeclParameter
	DeclFunction
	DeclField
	DeclExpression
	DeclUnitHook
)

// Declaration is the shared payload for every declaration-shaped node: an
// id, linkage, the two IDs assigned once by C8, and an optional doc
// string (spec 3, "Kind hierarchy").  Concrete declaration kinds embed it.
type Declaration struct {
	Kind        DeclKind
	Name        string
	Linkage     Linkage
	Doc         string
	fqID        string
	canonicalID string
	onHeap      bool
}

func (*Declaration) payloadMarker() {}

// FullyQualifiedID implements types.DeclRef.
func (d *Declaration) FullyQualifiedID() string { return d.fqID }

// CanonicalID returns the canonical ID assigned by C8, or "" if not yet set.
func (d *Declaration) CanonicalID() string { return d.canonicalID }

// IsOnHeap implements types.DeclRef (spec 4.7, "Type references": a
// resolved Name to an on-heap declaration forces value_ref<T> rewrapping).
func (d *Declaration) IsOnHeap() bool { return d.onHeap }

// SetOnHeap marks this declaration as heap-allocated (structs, units).
func (d *Declaration) SetOnHeap(v bool) { d.onHeap = v }

// SetFullyQualifiedID is called exactly once by the ID assigner; a second
// call with a different value is an internal error (spec 3: "Every
// declaration carries two IDs set exactly once").
func (d *Declaration) SetFullyQualifiedID(id string) {
	if d.fqID != "" && d.fqID != id {
		panic("internal error: fully-qualified ID changed after being set")
	}

	d.fqID = id
}

// SetCanonicalID is called exactly once by the ID assigner.
func (d *Declaration) SetCanonicalID(id string) {
	if d.canonicalID != "" && d.canonicalID != id {
		panic("internal error: canonical ID changed after being set")
	}

	d.canonicalID = id
}

// ModuleDecl is the root declaration of a parsed source file.
type ModuleDecl struct {
	Declaration
	ModuleID        string
	ProcessExtension string
	SearchScope     string
	// uid is filled in by RegisterModule's caller once the module's path
	// is known, so Context.Dependencies can resolve a module node back to
	// the UID recorded in its dependency graph.
	uid UID
}

// UID returns this module's registered identity, or the zero UID before
// it has been parsed through Context.ParseSource/ImportModule.
func (d *ModuleDecl) UID() UID { return d.uid }

// SetUID records this module's identity once it is registered.
func (d *ModuleDecl) SetUID(uid UID) { d.uid = uid }

// ImportedModuleDecl records a (possibly lazily-resolved) import.
type ImportedModuleDecl struct {
	Declaration
	TargetID string
	Scope    string
	Resolved bool
	// UID is filled in once the resolver lazily resolves the import
	// (spec 4.7: "Imports are executed lazily").
	UID UID
}

// TypeDecl binds a name to an unqualified type.
type TypeDecl struct {
	Declaration
	Type *types.QualifiedType
}

// ConstantDecl binds a name to a compile-time constant expression.
type ConstantDecl struct {
	Declaration
	Type  *types.QualifiedType
	Value *Node // an Expression node
}

// GlobalVariableDecl is a module-scoped mutable variable.
type GlobalVariableDecl struct {
	Declaration
	Type *types.QualifiedType
	Init *Node // optional initializer Expression
}

// LocalVariableDecl is a function- or block-scoped mutable variable.
type LocalVariableDecl struct {
	Declaration
	Type *types.QualifiedType
	Init *Node
}

// ParameterDecl is a function or operator parameter; also used, with a
// bare (non module-qualified) fully-qualified ID, for catch-clause
// parameters (spec 4.8, "Compute").
type ParameterDecl struct {
	Declaration
	Type       *types.QualifiedType
	Operand    OperandKind
	Default    *Node
	IsCatch    bool
}

// OperandKind classifies a parameter's passing convention.
type OperandKind uint8

const (
	OperandUnknown OperandKind = iota
	OperandIn
	OperandInOut
	OperandCopy
)

// FunctionDecl declares a function, method, or operator implementation.
type FunctionDecl struct {
	Declaration
	Type       *types.FunctionType
	Parameters []*Node // ParameterDecl nodes
	Body       *Node   // optional Block statement
	IsHook     bool
}

// FieldDecl is a struct/union/bitfield/unit member declaration.
type FieldDecl struct {
	Declaration
	Type       *types.QualifiedType
	Internal   bool
	Optional   bool
	Default    *Node
	Attributes map[string]*Node // Spicy parse attributes (&size, &until, ...)
}

// ExpressionDecl wraps a bare expression appearing where a declaration is
// structurally expected (e.g. an anonymous struct field default).
type ExpressionDecl struct {
	Declaration
	Value *Node
}

// UnitHookDecl is a Spicy unit hook (%init, %done, __on_<field>, ...).
type UnitHookDecl struct {
	Declaration
	HookName string
	Body     *Node
	// Unit and Field are weak references to the unit type and field this
	// hook is attached to (spec 9, design notes, item (d)).
	Unit  types.DeclRef
	Field string
}
