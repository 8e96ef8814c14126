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

// Package optimize implements the optimizer (C10): a set of disabled-by-
// default visitors run to a fixed point over an already-resolved AST.
package optimize

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

var optimizeLog = log.WithField("stream", "optimizer-collect")

// maxRounds bounds the optimizer's own fixed-point loop, mirroring the
// resolver's guardrail.
const maxRounds = 50

// Flags selects which optimizer visitors run; every flag defaults to
// false (spec 4.10: "disabled by default").
type Flags struct {
	FeatureGating     bool
	FunctionPruning   bool
	ConstantFolding   bool
	MemberPruning     bool
	TypePruning       bool
	// Features lists the feature names considered enabled for gating
	// decisions (e.g. from a `--enable-feature` CLI flag).
	Features map[string]bool
}

// requiresFeatureKey is the FieldDecl attribute
// key naming the feature flag a declaration requires to stay in the tree.
const requiresFeatureKey = "requires-feature"

// Optimizer runs the registered passes to a fixed point (spec 4.10).
type Optimizer struct {
	ctx   *ast.Context
	flags Flags
}

// NewOptimizer constructs an optimizer with the given flags.
func NewOptimizer(ctx *ast.Context, flags Flags) *Optimizer {
	if flags.Features == nil {
		flags.Features = map[string]bool{}
	}

	return &Optimizer{ctx: ctx, flags: flags}
}

// Run executes every enabled visitor in rounds until none reports a
// change, or panics past maxRounds (an oscillating optimizer pass is an
// internal error, matching the resolver's own guardrail).
func (o *Optimizer) Run(root *ast.Node) bool {
	anyChange := false
	round := 0

	for {
		round++
		if round > maxRounds {
			panic("internal error: optimizer did not reach a fixed point within 50 rounds")
		}

		changed := false

		if o.flags.FeatureGating {
			if o.runFeatureGating(root) {
				changed = true
			}
		}

		if o.flags.ConstantFolding {
			if o.runConstantFolding(root) {
				changed = true
			}
		}

		if o.flags.FunctionPruning {
			if o.runFunctionPruning(root) {
				changed = true
			}
		}

		if o.flags.MemberPruning {
			if o.runMemberPruning(root) {
				changed = true
			}
		}

		if o.flags.TypePruning {
			if o.runTypePruning(root) {
				changed = true
			}
		}

		if changed {
			anyChange = true
		} else {
			break
		}

		optimizeLog.Debugf("optimizer round %d made changes, continuing", round)
	}

	return anyChange
}

// runFeatureGating implements spec 4.10's feature-requirement gating: a
// declaration tagged requires-feature=X is kept if X is enabled and
// pruned (detached from its parent) otherwise.  Either outcome stamps the
// supplemented doc annotation `"features: <name> (kept|folded)"`
// (SPEC_FULL.md §C.4).
func (o *Optimizer) runFeatureGating(n *ast.Node) bool {
	changed := false

	var walk func(*ast.Node)
	walk = func(node *ast.Node) {
		if node == nil {
			return
		}

		children := append([]*ast.Node(nil), node.Children()...)

		for _, c := range children {
			if c == nil {
				continue
			}

			if feature, attrs, decl := featureRequirement(c); attrs != nil {
				kept := o.flags.Features[feature]
				annotation := fmt.Sprintf("features: %s (%s)", feature, gateWord(kept))

				if decl.Doc == "" {
					decl.Doc = annotation
				} else {
					decl.Doc = decl.Doc + "; " + annotation
				}

				if !kept {
					o.ctx.Detach(c)
					optimizeLog.Debugf("pruned declaration gated on disabled feature %q", feature)
					changed = true

					continue
				}
			}

			walk(c)
		}
	}

	walk(n)

	return changed
}

func gateWord(kept bool) string {
	if kept {
		return "kept"
	}

	return "folded"
}

// featureRequirement extracts the requires-feature attribute (if any)
// from a declaration-shaped node, returning the feature name, the
// attribute map it was found in (non-nil only when present), and the
// embedded Declaration header to annotate.
func featureRequirement(n *ast.Node) (string, map[string]*ast.Node, *ast.Declaration) {
	// UnitHookDecl carries no Attributes map of its own; feature gating on
	// hooks is expressed through the field they attach to, which this
	// visitor already reaches via FieldDecl.
	if p, ok := n.Payload.(*ast.FieldDecl); ok {
		if f, ok := p.Attributes[requiresFeatureKey]; ok {
			return attributeString(f), p.Attributes, &p.Declaration
		}
	}

	return "", nil, nil
}

// attributeString extracts a literal string value from an attribute's
// expression node, falling back to the empty string for anything else.
func attributeString(n *ast.Node) string {
	if n == nil {
		return ""
	}

	if ctor, ok := n.Payload.(*ast.CtorExpr); ok {
		if sc, ok := ctor.Ctor.Payload.(*ast.StringCtor); ok {
			return sc.Value
		}
	}

	return ""
}

// runConstantFolding implements spec 4.10's constant folding: a
// ResolvedOperatorExpr over folded-constant operands gets its own folded
// value computed and stored in Expression.Constant.  Only integer
// arithmetic is folded directly; everything else is left for codegen.
func (o *Optimizer) runConstantFolding(n *ast.Node) bool {
	changed := false

	var walk func(*ast.Node)
	walk = func(node *ast.Node) {
		if node == nil {
			return
		}

		if op, ok := node.Payload.(*ast.ResolvedOperatorExpr); ok && op.Constant == nil {
			if v, ok := foldIntegerOperator(op); ok {
				op.Constant = v
				changed = true
			}
		}

		for _, c := range node.Children() {
			walk(c)
		}
	}

	walk(n)

	return changed
}

// foldIntegerOperator folds Add/Multiple/BitAnd/BitOr/BitXor over two
// literal integer constants; every other shape is left unfolded.
func foldIntegerOperator(op *ast.ResolvedOperatorExpr) (int64, bool) {
	if len(op.Operands) != 2 {
		return 0, false
	}

	lhs, ok := literalInt(op.Operands[0])
	if !ok {
		return 0, false
	}

	rhs, ok := literalInt(op.Operands[1])
	if !ok {
		return 0, false
	}

	switch op.Operator.Kind {
	case ast.OpAdd:
		return lhs + rhs, true
	case ast.OpMultiple:
		return lhs * rhs, true
	case ast.OpBitAnd:
		return lhs & rhs, true
	case ast.OpBitOr:
		return lhs | rhs, true
	case ast.OpBitXor:
		return lhs ^ rhs, true
	default:
		return 0, false
	}
}

func literalInt(n *ast.Node) (int64, bool) {
	ctor, ok := n.Payload.(*ast.CtorExpr)
	if !ok {
		return 0, false
	}

	lit, ok := ctor.Ctor.Payload.(*ast.IntegerCtor)
	if !ok {
		return 0, false
	}

	return lit.Value, true
}

// usage counts, per fully-qualified ID, how many NameExpr references point
// at a declaration (spec 4.10's Collect phase, generalized across the
// function/member/type pruning visitors below).
type usage struct {
	counts map[string]int
}

func collectUsage(root *ast.Node) *usage {
	u := &usage{counts: map[string]int{}}

	var walk func(*ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}

		if name, ok := n.Payload.(*ast.NameExpr); ok && name.Decl != nil {
			if fq := name.Decl.FullyQualifiedID(); fq != "" {
				u.counts[fq]++
			}
		}

		for _, c := range n.Children() {
			walk(c)
		}
	}

	walk(root)

	return u
}

func (u *usage) unused(fqID string) bool { return u.counts[fqID] == 0 }

// runFunctionPruning implements spec 4.10's function pruning: a private,
// unreferenced FunctionDecl (never called, no hook, not exported) is
// detached.  Collect -> PruneUses -> PruneDecls, as three explicit steps.
func (o *Optimizer) runFunctionPruning(root *ast.Node) bool {
	u := collectUsage(root) // Collect

	changed := false

	var walk func(*ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}

		children := append([]*ast.Node(nil), n.Children()...)

		for _, c := range children {
			if c == nil {
				continue
			}

			if fn, ok := c.Payload.(*ast.FunctionDecl); ok && !fn.IsHook {
				if fn.Linkage != ast.Public && u.unused(fn.FullyQualifiedID()) {
					// PruneUses: a pruned function has no body left to scan for
					// further uses, so nothing further to rewrite here.
					o.ctx.Detach(c) // PruneDecls
					optimizeLog.Debugf("pruned unused function %q", fn.Name)
					changed = true

					continue
				}
			}

			walk(c)
		}
	}

	walk(root)

	return changed
}

// runMemberPruning implements spec 4.10's member pruning: an internal,
// unreferenced, non-parsed struct field with no attributes is detached.
func (o *Optimizer) runMemberPruning(root *ast.Node) bool {
	u := collectUsage(root)

	changed := false

	var walk func(*ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}

		children := append([]*ast.Node(nil), n.Children()...)

		for _, c := range children {
			if c == nil {
				continue
			}

			if f, ok := c.Payload.(*ast.FieldDecl); ok {
				if f.Internal && len(f.Attributes) == 0 && u.unused(f.FullyQualifiedID()) {
					o.ctx.Detach(c)
					optimizeLog.Debugf("pruned unused internal field %q", f.Name)
					changed = true

					continue
				}
			}

			walk(c)
		}
	}

	walk(root)

	return changed
}

// runTypePruning implements spec 4.10's type pruning: a private TypeDecl
// with no remaining NameType reference anywhere in the tree is detached.
func (o *Optimizer) runTypePruning(root *ast.Node) bool {
	referenced := map[string]bool{}

	var collect func(*ast.Node)
	collect = func(n *ast.Node) {
		if n == nil {
			return
		}

		if td, ok := n.Payload.(*ast.TypeDecl); ok && td.Type != nil {
			markNameReferences(td.Type.Type, referenced, map[types.UnqualifiedType]bool{})
		}

		if fn, ok := n.Payload.(*ast.FunctionDecl); ok && fn.Type != nil {
			seen := map[types.UnqualifiedType]bool{}

			for _, p := range fn.Type.Params {
				markNameReferences(p.Type, referenced, seen)
			}

			if fn.Type.Result != nil {
				markNameReferences(fn.Type.Result.Type, referenced, seen)
			}
		}

		for _, c := range n.Children() {
			collect(c)
		}
	}

	collect(root)

	changed := false

	var walk func(*ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}

		children := append([]*ast.Node(nil), n.Children()...)

		for _, c := range children {
			if c == nil {
				continue
			}

			if td, ok := c.Payload.(*ast.TypeDecl); ok {
				if td.Linkage != ast.Public && !referenced[td.FullyQualifiedID()] {
					o.ctx.Detach(c)
					optimizeLog.Debugf("pruned unreferenced type %q", td.Name)
					changed = true

					continue
				}
			}

			walk(c)
		}
	}

	walk(root)

	return changed
}

// markNameReferences walks t's structure, recording the fully-qualified
// ID of every declared (Name/Struct/Enum/Unit) type it reaches, so
// runTypePruning can tell which TypeDecls are still depended on.  seen
// guards against the cyclic type graphs that recursive unit/struct
// definitions naturally form.
func markNameReferences(t types.UnqualifiedType, referenced map[string]bool, seen map[types.UnqualifiedType]bool) {
	if t == nil || seen[t] {
		return
	}

	seen[t] = true

	switch v := t.(type) {
	case *types.NameType:
		referenced[v.Path] = true

		if v.Target != nil {
			markNameReferences(v.Target, referenced, seen)
		}
	case *types.StructType:
		if v.Decl != nil {
			referenced[v.Decl.FullyQualifiedID()] = true
		}

		for _, f := range v.Fields {
			markNameReferences(f.Type.Type, referenced, seen)
		}
	case *types.UnitType:
		if v.Decl != nil {
			referenced[v.Decl.FullyQualifiedID()] = true
		}

		for _, f := range v.Fields {
			markNameReferences(f.Type.Type, referenced, seen)
		}
	case *types.EnumType:
		if v.Decl != nil {
			referenced[v.Decl.FullyQualifiedID()] = true
		}
	case *types.UnionType:
		for _, f := range v.Fields {
			markNameReferences(f.Type.Type, referenced, seen)
		}
	case *types.TupleType:
		for _, e := range v.Elements {
			markNameReferences(e.Type, referenced, seen)
		}
	case *types.FunctionType:
		for _, p := range v.Params {
			markNameReferences(p.Type, referenced, seen)
		}

		if v.Result != nil {
			markNameReferences(v.Result.Type, referenced, seen)
		}
	default:
		if deref := t.DereferencedType(); deref != nil {
			markNameReferences(deref.Type, referenced, seen)
		}

		if elem := t.ElementType(); elem != nil {
			markNameReferences(elem.Type, referenced, seen)
		}
	}
}
