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

// Package types implements the unqualified/qualified type lattice (C2) and
// the type unifier (C5).
package types

// DeclRef is a weak, non-owning back-reference from a type to the
// declaration it names.  It is defined here (rather than importing the ast
// package) so that a Name type can point back at its declaration without
// creating an import cycle between ast and types; ast.Declaration
// implements this interface.
type DeclRef interface {
	// FullyQualifiedID returns the declaration's dotted path, or the empty
	// string if the declaration has not yet been assigned one.
	FullyQualifiedID() string
	// IsOnHeap reports whether the referenced declaration lives on the
	// heap, in which case a resolved Name type must rewrap its enclosing
	// qualified type as a value_ref<T> (spec 4.7, "Type references").
	IsOnHeap() bool
}

// Kind tags every concrete unqualified type for fast dispatch without a
// type switch in hot paths; the type switch is still the source of truth,
// Kind is a cached hint.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuto
	KindVoid
	KindBool
	KindInteger
	KindReal
	KindString
	KindBytes
	KindStream
	KindStreamIterator
	KindStreamView
	KindRegExp
	KindEnum
	KindBitfield
	KindBitRange
	KindStruct
	KindTuple
	KindUnion
	KindList
	KindVector
	KindSet
	KindMap
	KindOptional
	KindResult
	KindStrongReference
	KindWeakReference
	KindValueReference
	KindFunction
	KindOperandList
	KindName
	KindTypeOf
	KindMember
	KindLibrary
	KindUnit
	KindSink
)

// UnqualifiedType is the interface every concrete type kind implements.
// The kind hierarchy is a sealed set (spec 3, "Kind hierarchy"); dispatch
// happens by type switch in the unifier and coercion engine, not by
// virtual method overrides beyond the small set below.
type UnqualifiedType interface {
	// Kind returns this type's cached dispatch tag.
	Kind() Kind
	// IsAllocable reports whether a value of this type can be allocated
	// on the stack/as a local.
	IsAllocable() bool
	// IsMutable reports whether values of this type support in-place
	// mutation (containers, structs with non-const fields, streams).
	IsMutable() bool
	// IsNameType reports whether this is an unresolved Name reference.
	IsNameType() bool
	// IsReferenceType reports whether this is one of the three reference
	// kinds (strong/weak/value).
	IsReferenceType() bool
	// IsResolved reports whether this type (and, transitively, its
	// components) no longer contains an unresolved Name.
	IsResolved() bool
	// IsSortable reports whether relational operators are defined for
	// this type.
	IsSortable() bool
	// Wildcard reports whether this is the wildcard instance of its
	// class (T<*>): it matches any concrete instance of the same class
	// for coercion, but fails strict equality.
	Wildcard() bool

	// DereferencedType returns the pointee type for references, or nil.
	DereferencedType() *QualifiedType
	// ElementType returns the contained element type for containers, or nil.
	ElementType() *QualifiedType
	// IteratorType returns this type's iterator type, or nil.
	IteratorType() *QualifiedType
	// ViewType returns this type's view type (streams only), or nil.
	ViewType() *QualifiedType
	// Parameters returns function parameter types, or nil for non-functions.
	Parameters() []*QualifiedType

	// Unification returns the structural fingerprint computed by the
	// unifier, or "" if not yet set.
	Unification() string
	// setUnification is called only by the unifier.
	setUnification(string)
}

// Follow walks Name references until a non-Name or an unresolved Name is
// reached (spec 4.2, "Dereference chain").  It is invoked implicitly
// whenever a qualified type's underlying type is read.
func Follow(t UnqualifiedType) UnqualifiedType {
	for {
		n, ok := t.(*NameType)
		if !ok || n.Target == nil {
			return t
		}

		t = n.Target
	}
}

// base is embedded by every concrete kind and stores the unification
// string slot plus the monotone-write guard.
type base struct {
	kind        Kind
	unification string
}

func (b *base) Kind() Kind               { return b.kind }
func (b *base) Unification() string      { return b.unification }
func (b *base) setUnification(s string) {
	if b.unification != "" && b.unification != s {
		panic("unification string changed after being set")
	}

	b.unification = s
}

func (b *base) IsAllocable() bool       { return true }
func (b *base) IsMutable() bool         { return false }
func (b *base) IsNameType() bool        { return false }
func (b *base) IsReferenceType() bool   { return false }
func (b *base) IsResolved() bool        { return true }
func (b *base) IsSortable() bool        { return false }
func (b *base) Wildcard() bool          { return false }

func (b *base) DereferencedType() *QualifiedType { return nil }
func (b *base) ElementType() *QualifiedType      { return nil }
func (b *base) IteratorType() *QualifiedType     { return nil }
func (b *base) ViewType() *QualifiedType         { return nil }
func (b *base) Parameters() []*QualifiedType     { return nil }
