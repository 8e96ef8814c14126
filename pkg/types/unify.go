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
	"strings"
)

// maxUnsetRounds bounds how many unifier rounds a single type may go
// through with its unification string still unset before we treat it as
// a non-termination bug rather than "waiting on a sibling" (SPEC_FULL.md
// Open Question 2 / C.3: the supplemented termination invariant).  It is
// kept in lock-step with the resolver's own 50-round cap so a stuck type
// surfaces as the same class of internal error the resolver raises.
const maxUnsetRounds = 50

// Unifier runs the post-order mutating pass of C5: for every unqualified
// type without a unification string, dispatch by class to a serializer
// that appends the component fingerprints.  The unifier is monotone: once
// a string is set it is asserted never to change (enforced in
// base.setUnification).
type Unifier struct {
	unset map[UnqualifiedType]uint
}

// NewUnifier constructs an empty unifier.
func NewUnifier() *Unifier {
	return &Unifier{unset: make(map[UnqualifiedType]uint)}
}

// Visit attempts to unify a single type, returning true if it newly
// acquired a unification string this round.
func (u *Unifier) Visit(t UnqualifiedType) bool {
	if t.Unification() != "" {
		delete(u.unset, t)
		return false
	}

	s := u.serialize(t)
	if s == "" {
		u.unset[t]++

		if u.unset[t] > maxUnsetRounds {
			panic(fmt.Sprintf("internal error: type %T failed to unify after %d rounds", t, maxUnsetRounds))
		}

		return false
	}

	t.setUnification(s)
	delete(u.unset, t)

	return true
}

// serialize computes the structural fingerprint for t, or "" if any
// component is not yet unified (abort-and-retry-next-round, spec 4.5).
// Name types that resolve to a declaration with a fully-qualified ID emit
// name(id) regardless of structure (nominal typing); anonymous compounds
// fall through to structural serialization.
func (u *Unifier) serialize(t UnqualifiedType) string {
	switch v := t.(type) {
	case *NameType:
		if v.Target == nil {
			return ""
		}

		return u.serialize(v.Target)
	case *BoolType, *RealType, *StringType, *BytesType, *RegExpType, *VoidType, *SinkType:
		return t.Unification()
	case *IntType:
		return v.unifiedName()
	case *StreamType:
		return "stream"
	case *EnumType:
		if v.Decl != nil && v.Decl.FullyQualifiedID() != "" {
			return "name(" + v.Decl.FullyQualifiedID() + ")"
		}

		var b strings.Builder
		b.WriteString("enum(")

		for i, l := range v.Labels {
			if i > 0 {
				b.WriteByte(',')
			}

			fmt.Fprintf(&b, "%s=%d", l.Name, l.Value)
		}

		b.WriteByte(')')

		return b.String()
	case *BitfieldType:
		var b strings.Builder

		fmt.Fprintf(&b, "bitfield(%d;", v.Width)

		for i, r := range v.Ranges {
			if i > 0 {
				b.WriteByte(',')
			}

			s := u.qualifiedString(r.FieldType)
			if s == "" {
				return ""
			}

			fmt.Fprintf(&b, "%s:%d-%d:%s", r.Name, r.LowerBit, r.UpperBit, s)
		}

		b.WriteByte(')')

		return b.String()
	case *StructType:
		if !v.Anonymous && v.Decl != nil && v.Decl.FullyQualifiedID() != "" {
			return "name(" + v.Decl.FullyQualifiedID() + ")"
		}

		return u.serializeFields("struct", v.Fields)
	case *UnionType:
		return u.serializeFields("union", v.Fields)
	case *UnitType:
		if v.Decl != nil && v.Decl.FullyQualifiedID() != "" {
			return "name(" + v.Decl.FullyQualifiedID() + ")"
		}

		return u.serializeFields("unit", v.Fields)
	case *TupleType:
		var b strings.Builder
		b.WriteString("tuple(")

		for i, e := range v.Elements {
			if i > 0 {
				b.WriteByte(',')
			}

			s := u.qualifiedString(e)
			if s == "" {
				return ""
			}

			b.WriteString(s)
		}

		b.WriteByte(')')

		return b.String()
	case *ListType:
		return u.wrap1("list", v.elem)
	case *VectorType:
		return u.wrap1("vector", v.elem)
	case *SetType:
		return u.wrap1("set", v.elem)
	case *MapType:
		k := u.qualifiedString(v.Key)
		val := u.qualifiedString(v.Value)

		if k == "" || val == "" {
			return ""
		}

		return fmt.Sprintf("map(%s,%s)", k, val)
	case *OptionalType:
		return u.wrap1("optional", v.Elem)
	case *ResultType:
		return u.wrap1("result", v.Elem)
	case *StrongReferenceType:
		return u.wrap1("strong_ref", v.target)
	case *WeakReferenceType:
		return u.wrap1("weak_ref", v.target)
	case *ValueReferenceType:
		return u.wrap1("value_ref", v.target)
	case *FunctionType:
		var b strings.Builder
		b.WriteString("function(")

		for i, p := range v.Params {
			if i > 0 {
				b.WriteByte(',')
			}

			s := u.qualifiedString(p)
			if s == "" {
				return ""
			}

			b.WriteString(s)
		}

		b.WriteString(")->")

		r := u.qualifiedString(v.Result)
		if r == "" {
			return ""
		}

		b.WriteString(r)

		return b.String()
	case *LibraryType:
		return t.Unification()
	case *AutoType:
		return "" // never unifies; auto is replaced before unification runs
	default:
		return ""
	}
}

func (u *Unifier) wrap1(prefix string, elem *QualifiedType) string {
	s := u.qualifiedString(elem)
	if s == "" {
		return ""
	}

	return prefix + "(" + s + ")"
}

func (u *Unifier) serializeFields(prefix string, fields []StructField) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s(", prefix)

	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}

		s := u.qualifiedString(f.Type)
		if s == "" {
			return ""
		}

		fmt.Fprintf(&b, "%s:%s", f.Name, s)
	}

	b.WriteByte(')')

	return b.String()
}

// qualifiedString serializes a QualifiedType, prefixing a constness
// marker so "same except for constness" can be computed without it.
func (u *Unifier) qualifiedString(q *QualifiedType) string {
	if q == nil {
		return "void"
	}

	s := u.serialize(q.Type)
	if s == "" {
		return ""
	}

	if q.Const == Const {
		return "const " + s
	}

	return s
}
