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

// CtorKind tags which concrete value-constructor payload a node carries.
type CtorKind uint8

const (
	CtorBool CtorKind = iota
	CtorInteger
	CtorReal
	CtorString
	CtorBytes
	CtorTuple
	CtorList
	CtorVector
	CtorSet
	CtorMap
	CtorStruct
	CtorOptional
	CtorResult
	CtorNull
	CtorDefault
	CtorRegExp
	CtorCoerced
	CtorUnit
)

// Ctor is the shared payload for every value-constructor node.
type Ctor struct {
	Kind CtorKind
	Type *types.QualifiedType
}

func (*Ctor) payloadMarker() {}

// BoolCtor is a boolean literal.
type BoolCtor struct {
	Ctor
	Value bool
}

// IntegerCtor is a signed or unsigned integer literal of width 8/16/32/64.
type IntegerCtor struct {
	Ctor
	Signed bool
	Width  uint
	Value  int64
}

// RealCtor is a floating-point literal.
type RealCtor struct {
	Ctor
	Value float64
}

// StringCtor is a unicode string literal.
type StringCtor struct {
	Ctor
	Value string
}

// BytesCtor is a raw byte-sequence literal.
type BytesCtor struct {
	Ctor
	Value []byte
}

// TupleCtor constructs a tuple value from its element expressions.
type TupleCtor struct {
	Ctor
	Elements []*Node
}

// ListCtor, VectorCtor, SetCtor construct homogeneous containers; element
// type is inferred from the elements (spec 4.7, "Ctors"), failing
// gracefully on mixed types.
type ListCtor struct {
	Ctor
	Elements []*Node
}

type VectorCtor struct {
	Ctor
	Elements []*Node
}

type SetCtor struct {
	Ctor
	Elements []*Node
}

// MapEntry is one key/value pair of a MapCtor.
type MapEntry struct {
	Key   *Node
	Value *Node
}

// MapCtor constructs an associative container; an empty map ctor defaults
// key/value types to Unknown (spec 8, boundary behaviors).
type MapCtor struct {
	Ctor
	Entries []MapEntry
}

// StructFieldInit is one `name = value` initializer of a StructCtor.
type StructFieldInit struct {
	Name  string
	Value *Node
}

// StructCtor synthesizes an anonymous struct type from its field
// initializers (spec 4.7, "Ctors"); coercing it into a named struct type
// is governed by spec 4.6 rule 7.
type StructCtor struct {
	Ctor
	Fields []StructFieldInit
}

// OptionalCtor wraps a present value as optional<T>.
type OptionalCtor struct {
	Ctor
	Value *Node // nil means the unset optional
}

// ResultCtor wraps a present value (or an error) as result<T>.
type ResultCtor struct {
	Ctor
	Value *Node
	Error *Node
}

// NullCtor constructs the null reference literal.
type NullCtor struct{ Ctor }

// DefaultCtor constructs a type's default value, optionally forwarding
// constructor arguments (spec 4.7, "Default ctors and new").
type DefaultCtor struct {
	Ctor
	Target *types.QualifiedType
	Args   []*Node
}

// RegExpCtor is a regular-expression literal.
type RegExpCtor struct {
	Ctor
	Pattern string
}

// CoercedCtor is a ctor-specific coercion result (spec 4.6 rule 8,
// "recurse into ctor-specific coercion").
type CoercedCtor struct {
	Ctor
	Inner *Node
}

// UnitCtor is a Spicy unit literal, rewritten by C11 pass 1 into an
// equivalent StructCtor.
type UnitCtor struct {
	Ctor
	Fields []StructFieldInit
}
