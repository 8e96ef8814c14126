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
package types

import (
	"fmt"
	"math/big"

	"github.com/hiltilang/hilti-core/pkg/util"
)

// AutoType is the placeholder inferred from context (spec 4.6 rule 1).
type AutoType struct{ base }

// NewAutoType constructs a fresh auto type.
func NewAutoType() *AutoType { return &AutoType{base{kind: KindAuto}} }

// VoidType is the unit/no-value type.
type VoidType struct{ base }

// NewVoidType constructs the void type.
func NewVoidType() *VoidType { return &VoidType{base{kind: KindVoid}} }

// BoolType is the boolean type.
type BoolType struct{ base }

// NewBoolType constructs the bool type.
func NewBoolType() *BoolType {
	t := &BoolType{base{kind: KindBool}}
	t.setUnification("bool")

	return t
}

func (t *BoolType) IsSortable() bool { return true }

// IntType is a signed or unsigned integer of a fixed (or wildcard) width,
// tracked by an Interval giving its representable range (DESIGN.md: uses
// pkg/util.Interval the same way the teacher's IntType tracks column
// width ranges).
type IntType struct {
	base
	Signed   bool
	Width    uint // 8, 16, 32 or 64; 0 means wildcard (uint<*>)
	Interval *util.Interval
}

// NewIntType constructs a fixed-width integer type and derives its
// representable interval from signedness and width.
func NewIntType(signed bool, width uint) *IntType {
	var lower, upper big.Int

	if signed {
		lower.Neg(new(big.Int).Lsh(big.NewInt(1), width-1))
		upper.Sub(new(big.Int).Lsh(big.NewInt(1), width-1), big.NewInt(1))
	} else {
		upper.Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))
	}

	t := &IntType{base: base{kind: KindInteger}, Signed: signed, Width: width,
		Interval: util.NewInterval(&lower, &upper)}
	t.setUnification(t.unifiedName())

	return t
}

// NewWildcardIntType constructs int<*> / uint<*>, matching any concrete
// width of the same signedness for coercion purposes but never equal by
// strict structural comparison.
func NewWildcardIntType(signed bool) *IntType {
	return &IntType{base: base{kind: KindInteger}, Signed: signed, Width: 0}
}

func (t *IntType) unifiedName() string {
	if t.Signed {
		return fmt.Sprintf("int(%d)", t.Width)
	}

	return fmt.Sprintf("uint(%d)", t.Width)
}

func (t *IntType) Wildcard() bool   { return t.Width == 0 }
func (t *IntType) IsSortable() bool { return true }

// RealType is the floating-point type.
type RealType struct{ base }

// NewRealType constructs the real type.
func NewRealType() *RealType {
	t := &RealType{base{kind: KindReal}}
	t.setUnification("real")

	return t
}

func (t *RealType) IsSortable() bool { return true }

// StringType is the unicode string type.
type StringType struct{ base }

// NewStringType constructs the string type.
func NewStringType() *StringType {
	t := &StringType{base{kind: KindString}}
	t.setUnification("string")

	return t
}

func (t *StringType) IsSortable() bool { return true }

// BytesType is the raw byte-sequence type.
type BytesType struct{ base }

// NewBytesType constructs the bytes type.
func NewBytesType() *BytesType {
	t := &BytesType{base{kind: KindBytes}}
	t.setUnification("bytes")

	return t
}

func (t *BytesType) IsSortable() bool { return true }

// StreamType is an append-only byte stream; allocable, mutable, sortable,
// and exposes iterator and view projections (spec 4.2 example).
type StreamType struct {
	base
	iterator *QualifiedType
	view     *QualifiedType
}

// NewStreamType constructs the stream type and its iterator/view projections.
func NewStreamType() *StreamType {
	t := &StreamType{base: base{kind: KindStream}}
	t.iterator = NewQualifiedType(&StreamIteratorType{base{kind: KindStreamIterator}}, NonConst, RHS)
	t.view = NewQualifiedType(&StreamViewType{base{kind: KindStreamView}}, NonConst, RHS)
	t.setUnification("stream")

	return t
}

func (t *StreamType) IsMutable() bool                { return true }
func (t *StreamType) IsSortable() bool               { return true }
func (t *StreamType) IteratorType() *QualifiedType   { return t.iterator }
func (t *StreamType) ViewType() *QualifiedType        { return t.view }

// StreamIteratorType is a cursor into a stream.
type StreamIteratorType struct{ base }

// StreamViewType is a bounded window over a stream.
type StreamViewType struct{ base }

// RegExpType is a compiled regular expression value.
type RegExpType struct{ base }

// NewRegExpType constructs the regexp type.
func NewRegExpType() *RegExpType {
	t := &RegExpType{base{kind: KindRegExp}}
	t.setUnification("regexp")

	return t
}

// EnumLabel is one member of an EnumType.
type EnumLabel struct {
	Name  string
	Value int64
}

// EnumType is a named set of integer-valued labels.
type EnumType struct {
	base
	Labels []EnumLabel
	// Decl is a weak back-reference to the owning declaration, set by
	// the resolver once the enum's name has been bound.
	Decl DeclRef
}

// NewEnumType constructs an enum type from its labels.
func NewEnumType(labels []EnumLabel) *EnumType {
	return &EnumType{base: base{kind: KindEnum}, Labels: labels}
}

func (t *EnumType) IsSortable() bool { return true }

// BitRange is one named field within a BitfieldType.
type BitRange struct {
	Name        string
	LowerBit    uint
	UpperBit    uint
	FieldType   *QualifiedType
}

// BitfieldType packs named sub-integer fields into an integer of fixed width.
type BitfieldType struct {
	base
	Width  uint
	Ranges []BitRange
}

// NewBitfieldType constructs a bitfield type from its bit ranges.
func NewBitfieldType(width uint, ranges []BitRange) *BitfieldType {
	return &BitfieldType{base: base{kind: KindBitfield}, Width: width, Ranges: ranges}
}

// StructField is one member of a StructType.
type StructField struct {
	Name     string
	Type     *QualifiedType
	Internal bool
	Optional bool
	HasDefault bool
	// IsFunction marks a method-shaped field (omittable from a struct
	// ctor without coercion failure, per spec 4.6 rule 7).
	IsFunction bool
}

// StructType is a named or anonymous aggregate of fields; anonymous
// instances are synthesized by the resolver from struct ctors (spec 4.7,
// "Ctors").
type StructType struct {
	base
	Fields    []StructField
	Anonymous bool
	// Decl is a weak back-reference to the owning declaration.
	Decl DeclRef
}

// NewStructType constructs a struct type from its fields.
func NewStructType(fields []StructField, anonymous bool) *StructType {
	return &StructType{base: base{kind: KindStruct}, Fields: fields, Anonymous: anonymous}
}

// TupleType is a fixed-arity heterogeneous product type.
type TupleType struct {
	base
	Elements []*QualifiedType
}

// NewTupleType constructs a tuple type from its element types.
func NewTupleType(elements []*QualifiedType) *TupleType {
	return &TupleType{base: base{kind: KindTuple}, Elements: elements}
}

func (t *TupleType) Parameters() []*QualifiedType { return t.Elements }

// UnionType is a tagged sum over named alternatives.
type UnionType struct {
	base
	Fields []StructField
}

// NewUnionType constructs a union type from its alternatives.
func NewUnionType(fields []StructField) *UnionType {
	return &UnionType{base: base{kind: KindUnion}, Fields: fields}
}

// containerBase is embedded by every homogeneous-element container kind.
type containerBase struct {
	base
	elem     *QualifiedType
	iterator *QualifiedType
	wildcard bool
}

func (c *containerBase) IsMutable() bool              { return true }
func (c *containerBase) ElementType() *QualifiedType  { return c.elem }
func (c *containerBase) IteratorType() *QualifiedType { return c.iterator }

// Wildcard reports whether this is the T<*> wildcard instance of its
// container class (spec 4.2, "Wildcard"): used by the operator registry
// to describe container operators generically over any element type
// rather than one instantiation per concrete element.
func (c *containerBase) Wildcard() bool { return c.wildcard }

func newContainer(kind Kind, elem *QualifiedType) containerBase {
	return containerBase{
		base:     base{kind: kind},
		elem:     elem,
		iterator: NewQualifiedType(&opaqueIterator{base{kind: KindStreamIterator}}, NonConst, RHS),
	}
}

func newWildcardContainer(kind Kind) containerBase {
	c := newContainer(kind, NewQualifiedType(NewAutoType(), NonConst, RHS))
	c.wildcard = true

	return c
}

// opaqueIterator stands in for a container's iterator until the unifier
// gives it a proper fingerprint derived from the element type.
type opaqueIterator struct{ base }

// ListType is an immutable ordered sequence.
type ListType struct{ containerBase }

// NewListType constructs a list type over the given element type.
func NewListType(elem *QualifiedType) *ListType {
	return &ListType{newContainer(KindList, elem)}
}

func (t *ListType) IsMutable() bool { return false }

// NewWildcardListType constructs the generic list<*> instance used to
// describe list operators without binding a concrete element type.
func NewWildcardListType() *ListType { return &ListType{newWildcardContainer(KindList)} }

// VectorType is a mutable, index-addressable ordered sequence.
type VectorType struct{ containerBase }

// NewVectorType constructs a vector type over the given element type.
func NewVectorType(elem *QualifiedType) *VectorType {
	return &VectorType{newContainer(KindVector, elem)}
}

// NewWildcardVectorType constructs the generic vector<*> instance.
func NewWildcardVectorType() *VectorType { return &VectorType{newWildcardContainer(KindVector)} }

// SetType is a mutable unordered collection of unique elements.
type SetType struct{ containerBase }

// NewSetType constructs a set type over the given element type.
func NewSetType(elem *QualifiedType) *SetType {
	return &SetType{newContainer(KindSet, elem)}
}

// NewWildcardSetType constructs the generic set<*> instance.
func NewWildcardSetType() *SetType { return &SetType{newWildcardContainer(KindSet)} }

// MapType is a mutable associative container.  An empty map ctor defaults
// both Key and Value to Unknown (spec 8, boundary behaviors).
type MapType struct {
	base
	Key      *QualifiedType
	Value    *QualifiedType
	iterator *QualifiedType
	wildcard bool
}

// NewMapType constructs a map type over the given key/value types.
func NewMapType(key, value *QualifiedType) *MapType {
	return &MapType{base: base{kind: KindMap}, Key: key, Value: value,
		iterator: NewQualifiedType(&opaqueIterator{base{kind: KindStreamIterator}}, NonConst, RHS)}
}

// NewWildcardMapType constructs the generic map<*,*> instance used to
// describe map operators without binding concrete key/value types.
func NewWildcardMapType() *MapType {
	m := NewMapType(NewQualifiedType(NewAutoType(), NonConst, RHS), NewQualifiedType(NewAutoType(), NonConst, RHS))
	m.wildcard = true

	return m
}

func (t *MapType) IsMutable() bool              { return true }
func (t *MapType) ElementType() *QualifiedType  { return t.Value }
func (t *MapType) IteratorType() *QualifiedType { return t.iterator }
func (t *MapType) Wildcard() bool               { return t.wildcard }

// OptionalType wraps a value that may be unset.
type OptionalType struct {
	base
	Elem *QualifiedType
}

// NewOptionalType constructs optional<T>.
func NewOptionalType(elem *QualifiedType) *OptionalType {
	return &OptionalType{base: base{kind: KindOptional}, Elem: elem}
}

func (t *OptionalType) DereferencedType() *QualifiedType { return t.Elem }

// ResultType wraps a value that may instead carry an error.
type ResultType struct {
	base
	Elem *QualifiedType
}

// NewResultType constructs result<T>.
func NewResultType(elem *QualifiedType) *ResultType {
	return &ResultType{base: base{kind: KindResult}, Elem: elem}
}

func (t *ResultType) DereferencedType() *QualifiedType { return t.Elem }

// referenceBase is embedded by the three reference kinds.
type referenceBase struct {
	base
	target *QualifiedType
}

func (r *referenceBase) IsReferenceType() bool            { return true }
func (r *referenceBase) DereferencedType() *QualifiedType { return r.target }

// StrongReferenceType is an owning, reference-counted pointer.
type StrongReferenceType struct{ referenceBase }

// NewStrongReferenceType constructs strong_ref<T>.
func NewStrongReferenceType(target *QualifiedType) *StrongReferenceType {
	return &StrongReferenceType{referenceBase{base: base{kind: KindStrongReference}, target: target}}
}

// WeakReferenceType is a non-owning pointer that may dangle.
type WeakReferenceType struct{ referenceBase }

// NewWeakReferenceType constructs weak_ref<T>.
func NewWeakReferenceType(target *QualifiedType) *WeakReferenceType {
	return &WeakReferenceType{referenceBase{base: base{kind: KindWeakReference}, target: target}}
}

// ValueReferenceType is an on-heap value with value semantics at the use site.
type ValueReferenceType struct{ referenceBase }

// NewValueReferenceType constructs value_ref<T>.
func NewValueReferenceType(target *QualifiedType) *ValueReferenceType {
	return &ValueReferenceType{referenceBase{base: base{kind: KindValueReference}, target: target}}
}

// FunctionType describes a callable's parameter and result types.
type FunctionType struct {
	base
	Params []*QualifiedType
	Result *QualifiedType
}

// NewFunctionType constructs a function type.
func NewFunctionType(params []*QualifiedType, result *QualifiedType) *FunctionType {
	return &FunctionType{base: base{kind: KindFunction}, Params: params, Result: result}
}

func (t *FunctionType) Parameters() []*QualifiedType { return t.Params }

// OperandListType is an internal type describing an operator's operand
// shape; never surfaces to user-visible diagnostics.
type OperandListType struct {
	base
	Operands []*QualifiedType
}

// NewOperandListType constructs an internal operand-list type.
func NewOperandListType(operands []*QualifiedType) *OperandListType {
	return &OperandListType{base: base{kind: KindOperandList}, Operands: operands}
}

// NameType is an unresolved reference to a declared type by dotted name;
// once resolved, Target points (strongly, by design: the resolved type is
// owned by its declaration, not by this Name) at the named type.
type NameType struct {
	base
	Path   string
	Target UnqualifiedType
}

// NewNameType constructs an unresolved Name reference.
func NewNameType(path string) *NameType {
	return &NameType{base: base{kind: KindName}, Path: path}
}

func (t *NameType) IsNameType() bool { return true }
func (t *NameType) IsResolved() bool { return t.Target != nil && t.Target.IsResolved() }

// TypeOfType is the "type of a type" used by generic/type-level expressions.
type TypeOfType struct {
	base
	Of *QualifiedType
}

// NewTypeOfType constructs type<T>.
func NewTypeOfType(of *QualifiedType) *TypeOfType {
	return &TypeOfType{base: base{kind: KindTypeOf}, Of: of}
}

// MemberType names a single struct/enum member in isolation (used while
// resolving `.member` expressions before the containing type is known).
type MemberType struct {
	base
	Name string
}

// NewMemberType constructs a bare member-name type.
func NewMemberType(name string) *MemberType {
	return &MemberType{base: base{kind: KindMember}, Name: name}
}

// LibraryType is an opaque C++ type threaded through for downstream codegen.
type LibraryType struct {
	base
	CxxName string
}

// NewLibraryType constructs a library type wrapping an opaque C++ name.
func NewLibraryType(cxxname string) *LibraryType {
	t := &LibraryType{base: base{kind: KindLibrary}, CxxName: cxxname}
	t.setUnification("library(" + cxxname + ")")

	return t
}

// UnitType is a Spicy parser type; lowered by C11/C12 into a HILTI
// StructType plus generated parse functions.
type UnitType struct {
	base
	Fields []StructField
	Decl   DeclRef
}

// NewUnitType constructs a Spicy unit type.
func NewUnitType(fields []StructField) *UnitType {
	return &UnitType{base: base{kind: KindUnit}, Fields: fields}
}

// SinkType is the runtime object that accepts bytes forwarded from a
// unit's fields; lowered to strong_ref<spicy_rt::Sink>.
type SinkType struct{ base }

// NewSinkType constructs the sink type.
func NewSinkType() *SinkType {
	t := &SinkType{base{kind: KindSink}}
	t.setUnification("sink")

	return t
}
