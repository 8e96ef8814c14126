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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifierPrimitives(t *testing.T) {
	tests := []struct {
		name string
		t    UnqualifiedType
		want string
	}{
		{"bool", NewBoolType(), "bool"},
		{"real", NewRealType(), "real"},
		{"string", NewStringType(), "string"},
		{"bytes", NewBytesType(), "bytes"},
		{"stream", NewStreamType(), "stream"},
		{"signed int 32", NewIntType(true, 32), "int(32)"},
		{"unsigned int 8", NewIntType(false, 8), "uint(8)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.t.Unification())
		})
	}
}

func TestUnifierStruct(t *testing.T) {
	u := NewUnifier()

	st := NewStructType([]StructField{
		{Name: "a", Type: NewQualifiedType(NewIntType(true, 32), NonConst, RHS)},
		{Name: "b", Type: NewQualifiedType(NewBoolType(), NonConst, RHS)},
	}, true)

	require.True(t, u.Visit(st))
	assert.Equal(t, "struct(a:int(32),b:bool)", st.Unification())
}

func TestUnifierStructNominal(t *testing.T) {
	u := NewUnifier()

	st := NewStructType([]StructField{
		{Name: "a", Type: NewQualifiedType(NewIntType(true, 32), NonConst, RHS)},
	}, false)
	st.Decl = fakeDecl{fqid: "Foo::Bar"}

	require.True(t, u.Visit(st))
	assert.Equal(t, "name(Foo::Bar)", st.Unification())
}

func TestUnifierDefersUntilComponentsUnify(t *testing.T) {
	u := NewUnifier()

	elem := NewNameType("Foo::Elem")
	list := NewListType(NewQualifiedType(elem, NonConst, RHS))

	// elem is an unresolved name with no unification string yet: the
	// list must defer.
	assert.False(t, u.Visit(list))
	assert.Equal(t, "", list.Unification())

	elem.Target = NewIntType(true, 16)
	require.True(t, u.Visit(elem))
	require.True(t, u.Visit(list))
	assert.Equal(t, "list(int(16))", list.Unification())
}

func TestUnifierTuple(t *testing.T) {
	u := NewUnifier()

	a := NewIntType(true, 8)
	b := NewBoolType()
	tuple := NewTupleType([]*QualifiedType{
		NewQualifiedType(a, NonConst, RHS),
		NewQualifiedType(b, Const, RHS),
	})

	require.False(t, u.Visit(a)) // int types carry their string from construction
	require.True(t, u.Visit(tuple))
	assert.Equal(t, "tuple(int(8),const bool)", tuple.Unification())
}

func TestUnifierMapDefersOnEitherSide(t *testing.T) {
	u := NewUnifier()

	key := NewNameType("Foo::Key")
	val := NewNameType("Foo::Value")
	m := NewMapType(NewQualifiedType(key, NonConst, RHS), NewQualifiedType(val, NonConst, RHS))

	assert.False(t, u.Visit(m))

	key.Target = NewIntType(false, 32)
	require.True(t, u.Visit(key))
	assert.False(t, u.Visit(m))

	val.Target = NewStringType()
	require.True(t, u.Visit(val))
	require.True(t, u.Visit(m))
	assert.Equal(t, "map(uint(32),string)", m.Unification())
}

func TestUnifierFunction(t *testing.T) {
	u := NewUnifier()

	p1 := NewIntType(true, 32)
	result := NewBoolType()
	fn := NewFunctionType(
		[]*QualifiedType{NewQualifiedType(p1, NonConst, RHS)},
		NewQualifiedType(result, NonConst, RHS),
	)

	// int and bool types carry their string from construction.
	require.False(t, u.Visit(p1))
	require.False(t, u.Visit(result))
	require.True(t, u.Visit(fn))
	assert.Equal(t, "function(int(32))->bool", fn.Unification())
}

func TestUnifierPanicsAfterMaxUnsetRounds(t *testing.T) {
	u := NewUnifier()

	// A type that never unifies (an opaque iterator has no serializer)
	// must eventually panic rather than loop forever.
	cyclic := &opaqueIterator{base{kind: KindStreamIterator}}

	assert.PanicsWithValue(t,
		"internal error: type *types.opaqueIterator failed to unify after 50 rounds",
		func() {
			for i := 0; i < maxUnsetRounds+1; i++ {
				u.Visit(cyclic)
			}
		})
}

func TestUnqualifiedTypeUnificationMonotone(t *testing.T) {
	b := NewBoolType()

	assert.Equal(t, "bool", b.Unification())
	assert.NotPanics(t, func() { b.setUnification("bool") })
	assert.PanicsWithValue(t, "unification string changed after being set", func() {
		b.setUnification("something-else")
	})
}

// fakeDecl is a minimal DeclRef stand-in for tests that need a
// resolved, non-heap declaration back-reference.
type fakeDecl struct {
	fqid   string
	onHeap bool
}

func (f fakeDecl) FullyQualifiedID() string { return f.fqid }
func (f fakeDecl) IsOnHeap() bool           { return f.onHeap }
