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

// Package spicy implements the Spicy-to-HILTI lowering pass (C11) and the
// grammar / parser-builder (C12): the two passes that exist only because
// Spicy, unlike HILTI, describes parsers declaratively rather than as
// executable code.
package spicy

import (
	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

var grammarLog = log.WithField("stream", "spicy-codegen")

// maxGrammarRounds bounds the nullability/first-set fixed point the same
// way the resolver and optimizer bound theirs (spec 4.12).
const maxGrammarRounds = 50

// ProductionKind is the sealed set of grammar node shapes (spec 4.12,
// "Production kinds").
type ProductionKind uint8

const (
	Epsilon ProductionKind = iota
	Ctor
	Variable
	Skip
	Sequence
	Enclosure
	Counter
	ForEach
	While
	Switch
	LookAhead
	Resolved
	Unit
)

// LiteralMode is a LookAhead production's scanning strategy (spec 4.12,
// "Lookahead").
type LiteralMode uint8

const (
	ModeDefault LiteralMode = iota
	ModeTry
	ModeSearch
	ModeSkip
)

// Production is one node of a unit's grammar (spec 4.12): the field it
// was built from, its kind, nullability/first-set bookkeeping, and its
// right-hand-side alternatives.
type Production struct {
	Kind ProductionKind
	// Symbol is a stable name used for lookahead tables and the cached
	// per-symbol recursive parse function (spec 4.12, "Field parsing
	// contract", step 2).
	Symbol string
	// Field is the FieldDecl node this production was built from; nil for
	// synthetic productions (Epsilon, Sequence glue).
	Field *ast.Node
	// Type is the field's resolved type, used by Variable productions to
	// pick the runtime atomic-parse call.
	Type *types.QualifiedType
	// Expr is a literal ctor expression for Ctor productions, or the loop
	// condition for While/ForEach.
	Expr *ast.Node
	// TokenID distinguishes LookAhead alternatives once resolved.
	TokenID int
	// RHS holds sub-productions: Sequence's fields in order, Switch's
	// branches, LookAhead's two alternatives, Counter/ForEach/While's
	// single repeated element.
	RHS []*Production

	nullable  util3
	eodOk     bool
	literal   bool
	atomic    bool
	terminal  bool
	firstSet  map[string]bool
}

// util3 exists only so nullable can start "unknown" rather than false,
// which would make the fixed point converge on a wrong answer for
// self-referential (Unit) productions before their target is known.
type util3 uint8

const (
	unknown util3 = iota
	yes
	no
)

// IsNullable reports whether this production can match the empty input.
func (p *Production) IsNullable() bool { return p.nullable == yes }

// IsEodOk reports whether this production accepts reaching end-of-data
// without itself failing (e.g. an optional trailing field).
func (p *Production) IsEodOk() bool { return p.eodOk }

// IsLiteral reports whether this production is a fixed byte/regexp/integer
// pattern suitable for inclusion in a LookAhead first-set.
func (p *Production) IsLiteral() bool { return p.literal }

// IsAtomic reports whether this production parses a single value in one
// step (Ctor, Variable), as opposed to recursing into sub-productions.
func (p *Production) IsAtomic() bool { return p.atomic }

// IsTerminal reports whether this production has no RHS alternatives.
func (p *Production) IsTerminal() bool { return p.terminal }

// FirstSet returns the production's computed first-set, or nil if the
// grammar's fixed point has not yet been run.
func (p *Production) FirstSet() map[string]bool { return p.firstSet }

// Grammar is one unit type's full production graph plus its named-symbol
// index, used by the parser builder to generate the cached per-symbol
// recursive parse functions (spec 4.12).
type Grammar struct {
	UnitName string
	Root     *Production
	bySymbol map[string]*Production
}

// Lookup returns the production registered under symbol, if any.
func (g *Grammar) Lookup(symbol string) (*Production, bool) {
	p, ok := g.bySymbol[symbol]
	return p, ok
}

// GrammarBuilder constructs a Grammar from a unit's field declarations and
// runs its nullability/first-set fixed point.
type GrammarBuilder struct {
	seq int
}

// NewGrammarBuilder constructs a grammar builder.
func NewGrammarBuilder() *GrammarBuilder { return &GrammarBuilder{} }

// Build constructs the grammar for one unit type from its ordered field
// declaration nodes (spec 4.12: "For each Spicy unit type, C12 builds a
// grammar ... and then generates HILTI code implementing its parser").
func (b *GrammarBuilder) Build(unitName string, fields []*ast.Node) *Grammar {
	g := &Grammar{UnitName: unitName, bySymbol: make(map[string]*Production)}

	seq := &Production{Kind: Sequence, Symbol: unitName}
	for _, f := range fields {
		p := b.buildField(f)
		g.bySymbol[p.Symbol] = p
		seq.RHS = append(seq.RHS, p)
	}

	g.Root = seq
	g.bySymbol[unitName] = seq

	b.computeFixedPoint(g)

	return g
}

func (b *GrammarBuilder) buildField(field *ast.Node) *Production {
	fd, ok := field.Payload.(*ast.FieldDecl)
	if !ok {
		return &Production{Kind: Epsilon, Symbol: b.freshSymbol("epsilon")}
	}

	p := &Production{Field: field, Type: fd.Type, Symbol: symbolFor(fd)}

	switch underlying := fd.Type.Underlying().(type) {
	case *types.BytesType, *types.StringType, *types.RegExpType:
		p.Kind = Ctor
		p.literal = true
		p.atomic = true
		p.terminal = true
	case *types.ListType, *types.VectorType, *types.SetType:
		p.Kind = b.containerKind(fd)
		p.RHS = []*Production{{Symbol: p.Symbol + ".elem", Kind: Variable, Type: underlying.ElementType(), atomic: true, terminal: true}}
	case *types.UnitType:
		p.Kind = Unit
		p.atomic = false
		p.terminal = true
	default:
		p.Kind = Variable
		p.atomic = true
		p.terminal = true
	}

	if fd.Attributes != nil {
		if _, ok := fd.Attributes["synchronize"]; ok {
			grammarLog.Debugf("field %s marked as a synchronization point", fd.Name)
		}
	}

	return p
}

// containerKind picks Counter (fixed repeat count), ForEach (repeat until
// a condition), or While (lookahead-driven list) per the field's
// attributes (spec 4.12, "Production kinds").
func (b *GrammarBuilder) containerKind(fd *ast.FieldDecl) ProductionKind {
	if fd.Attributes != nil {
		if _, ok := fd.Attributes["until"]; ok {
			return ForEach
		}

		if _, ok := fd.Attributes["while"]; ok {
			return While
		}
	}

	return Counter
}

func symbolFor(fd *ast.FieldDecl) string {
	if fd.Name != "" {
		return fd.Name
	}

	return "anon"
}

func (b *GrammarBuilder) freshSymbol(prefix string) string {
	b.seq++
	return prefix
}

// computeFixedPoint runs the nullability propagation (bottom-up) and the
// first-set computation to a fixed point, exactly as the resolver and
// optimizer run their own fixed-point loops (spec 4.12: "Nullability
// propagates bottom-up; lookahead sets are computed fix-point over the
// grammar").
func (b *GrammarBuilder) computeFixedPoint(g *Grammar) {
	for round := 0; ; round++ {
		if round > maxGrammarRounds {
			panic("internal error: grammar fixed point did not converge")
		}

		changed := computeNullability(g.Root)
		changed = computeFirstSets(g.Root) || changed

		if !changed {
			break
		}
	}
}

func computeNullability(p *Production) bool {
	changed := false

	for _, c := range p.RHS {
		if computeNullability(c) {
			changed = true
		}
	}

	before := p.nullable

	switch p.Kind {
	case Epsilon:
		p.nullable = yes
	case Sequence:
		allNullable := true
		for _, c := range p.RHS {
			if c.nullable != yes {
				allNullable = false
				break
			}
		}
		if allNullable {
			p.nullable = yes
		} else if anyResolved(p.RHS) {
			p.nullable = no
		}
	case Switch:
		anyNullable := false
		for _, c := range p.RHS {
			if c.nullable == yes {
				anyNullable = true
			}
		}
		if anyNullable {
			p.nullable = yes
		} else if anyResolved(p.RHS) {
			p.nullable = no
		}
	case Counter, ForEach, While:
		p.nullable = yes // zero repetitions is always possible structurally
	default:
		if p.nullable == unknown {
			p.nullable = no
		}
	}

	return p.nullable != before
}

func anyResolved(ps []*Production) bool {
	for _, p := range ps {
		if p.nullable == unknown {
			return false
		}
	}

	return len(ps) > 0
}

// computeFirstSets fills in each LookAhead-eligible production's first
// set from its literal alternatives, recursing into sub-productions
// first (spec 4.12, "Lookahead": "the builder partitions the first-sets
// into regex literals ... and non-regex literals").
func computeFirstSets(p *Production) bool {
	changed := false

	for _, c := range p.RHS {
		if computeFirstSets(c) {
			changed = true
		}
	}

	if p.firstSet == nil {
		p.firstSet = make(map[string]bool)
	}

	before := len(p.firstSet)

	switch p.Kind {
	case Ctor:
		p.firstSet[p.Symbol] = true
	case Sequence:
		for _, c := range p.RHS {
			for k := range c.firstSet {
				p.firstSet[k] = true
			}

			if !c.IsNullable() {
				break
			}
		}
	case Switch, LookAhead:
		for _, c := range p.RHS {
			for k := range c.firstSet {
				p.firstSet[k] = true
			}
		}
	}

	return len(p.firstSet) != before
}
