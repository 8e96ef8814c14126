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
package resolve

import (
	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/coerce"
	"github.com/hiltilang/hilti-core/pkg/operator"
	"github.com/hiltilang/hilti-core/pkg/scope"
	"github.com/hiltilang/hilti-core/pkg/types"
)

var resolverLog = log.WithField("stream", "resolver")

// maxRounds caps the resolver's fixed-point loop; exceeding it is an
// internal error indicating an oscillation bug (spec 4.7).
const maxRounds = 50

// State is the resolver lifecycle state machine of spec 4.7:
// Fresh -> Resolving(round 1..N) -> Resolved, or -> Error.
type State uint8

const (
	Fresh State = iota
	Resolving
	Resolved
	Errored
)

// resolutionState mirrors the teacher's round/changed-flag bookkeeping in
// pkg/corset/compiler/resolver.go's NewGlobalResolution/state.Continue()
// machine, generalized here from "declarations only" to every node kind.
type resolutionState struct {
	round   int
	changed bool
}

func (s *resolutionState) beginIteration() { s.round++; s.changed = false }
func (s *resolutionState) mark()           { s.changed = true }
func (s *resolutionState) continueLoop() bool {
	return s.changed
}

// Resolver runs the single-threaded, monotone fixed-point loop of C7.
type Resolver struct {
	ctx        *ast.Context
	registry   *operator.Registry
	engine     *coerce.Engine
	idAssigner *IDAssigner
	unifier    *types.Unifier
	module     *scope.ModuleScope

	State State
}

// NewResolver constructs a resolver for one module's fixed-point pass.
func NewResolver(ctx *ast.Context, registry *operator.Registry, module *scope.ModuleScope) *Resolver {
	return &Resolver{
		ctx:        ctx,
		registry:   registry,
		engine:     coerce.NewEngine(ctx),
		idAssigner: NewIDAssigner(),
		unifier:    types.NewUnifier(),
		module:     module,
		State:      Fresh,
	}
}

// Resolve runs rounds until a fixed point, or panics with an internal
// error after maxRounds (spec 4.7 guardrail).
func (r *Resolver) Resolve(root *ast.Node, rebuildScopes bool) error {
	r.State = Resolving
	state := &resolutionState{}

	for {
		state.beginIteration()

		if state.round > maxRounds {
			panic("internal error: resolver did not reach a fixed point within 50 rounds")
		}

		// Step 1: clear all per-node errors.
		clearErrors(root)

		// Step 2: rebuild scopes if requested.
		if rebuildScopes {
			clearScopes(root)
			scope.NewBuilder(r.module).Build(root)
		}

		// Step 3: ID assigner.
		if r.idAssigner.Compute(root) {
			state.mark()
		}

		// Step 4: resolver visitor.
		if r.visit(root) {
			state.mark()
		}

		// Step 4b: drain pending operators.
		if r.registry.InitPending() {
			state.mark()
		}

		// Step 5: type unifier.
		if r.unifyAll(root) {
			state.mark()
		}

		r.ctx.AssertAcyclic()

		resolverLog.Debugf("round %d complete, changed=%v", state.round, state.changed)

		if !state.continueLoop() {
			break
		}
	}

	errs := CollectErrors(root)
	if len(errs) > 0 {
		r.State = Errored
		return &ResolutionError{Errors: errs}
	}

	r.State = Resolved

	return nil
}

// ResolutionError wraps the collected top-priority error bucket.
type ResolutionError struct {
	Errors []CollectedError
}

func (e *ResolutionError) Error() string {
	if len(e.Errors) == 0 {
		return "resolution failed"
	}

	return e.Errors[0].Message
}

func clearErrors(n *ast.Node) {
	if n == nil {
		return
	}

	n.ClearErrors()

	for _, c := range n.Children() {
		clearErrors(c)
	}
}

func clearScopes(n *ast.Node) {
	if n == nil {
		return
	}

	n.ClearScope()

	for _, c := range n.Children() {
		clearScopes(c)
	}
}

func (r *Resolver) unifyAll(n *ast.Node) bool {
	changed := false

	var walk func(*ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}

		if t := unqualifiedTypeOf(n); t != nil && r.unifier.Visit(t) {
			changed = true
		}

		for _, c := range n.Children() {
			walk(c)
		}
	}

	walk(n)

	return changed
}

func unqualifiedTypeOf(n *ast.Node) types.UnqualifiedType {
	if td, ok := n.Payload.(*ast.TypeDecl); ok && td.Type != nil {
		return td.Type.Type
	}

	return nil
}

// visit dispatches by node kind, implementing the representative
// obligations of spec 4.7.  Returns true if any node changed this round.
func (r *Resolver) visit(n *ast.Node) bool {
	if n == nil {
		return false
	}

	changed := false

	switch p := n.Payload.(type) {
	case *ast.NameExpr:
		changed = r.resolveName(n, p) || changed
	case *ast.UnresolvedOperatorExpr:
		changed = r.resolveOperator(n, p) || changed
	case *ast.AssignExpr:
		changed = r.resolveAssignment(n, p) || changed
	case *ast.IfStmt:
		if newCond, ok := r.coerceToBool(p.Cond); ok {
			p.Cond = newCond
			changed = true
		}
	case *ast.WhileStmt:
		if newCond, ok := r.coerceToBool(p.Cond); ok {
			p.Cond = newCond
			changed = true
		}
	case *ast.AssertStmt:
		if newCond, ok := r.coerceToBool(p.Cond); ok {
			p.Cond = newCond
			changed = true
		}
	case *ast.ListComprehensionExpr:
		changed = r.resolveListComprehension(n, p) || changed
	case *ast.ForStmt:
		changed = r.resolveForLoopLocal(n, p) || changed
	case *ast.SwitchStmt:
		changed = r.resolveSwitch(n, p) || changed
	case *ast.ImportedModuleDecl:
		changed = r.resolveImport(n, p) || changed
	case *ast.LocalVariableDecl:
		changed = r.propagateAuto(p.Type, p.Init) || changed
	case *ast.GlobalVariableDecl:
		changed = r.propagateAuto(p.Type, p.Init) || changed
	case *ast.ParameterDecl:
		changed = r.propagateAutoFromDefault(p) || changed
	case *ast.FunctionDecl:
		changed = r.inferFunctionReturnAuto(p) || changed
	case *ast.CtorExpr:
		changed = r.resolveCtor(n, p) || changed
	}

	for _, c := range n.Children() {
		if r.visit(c) {
			changed = true
		}
	}

	return changed
}

// resolveName looks up an unresolved Name in the scope chain; if found,
// caches the resolved declaration on the node (spec 4.7).
func (r *Resolver) resolveName(n *ast.Node, p *ast.NameExpr) bool {
	if p.Decl != nil {
		return false
	}

	s, ok := n.Scope().(scope.Scope)
	if !ok {
		return false
	}

	decl, found := s.Lookup(scope.BindingId{Name: p.Path})
	if !found {
		return false
	}

	if d, ok := declarationOf(decl.Payload); ok {
		p.Decl = d
		p.Resolved = true

		return true
	}

	return false
}

// resolveOperator gathers candidates for an unresolved operator, tries
// coercing operands across the six increasingly permissive styles, and
// replaces the node with the resolved form on a single match (spec 4.7).
func (r *Resolver) resolveOperator(n *ast.Node, p *ast.UnresolvedOperatorExpr) bool {
	var candidates []operator.Signature

	switch {
	case p.MemberID != "":
		candidates = r.registry.ByMethodID(p.MemberID)
	case p.BuiltinID != "":
		candidates = r.registry.ByBuiltinID(p.BuiltinID)
	default:
		candidates = r.registry.ByKind(p.Kind)
	}

	if len(candidates) == 0 {
		if p.Kind == ast.OpCast {
			return r.resolveCast(n, p)
		}

		return false
	}

	var matches []operator.Signature

	for _, style := range coerce.OperatorMatchStyles() {
		matches = matches[:0]

		for _, cand := range candidates {
			if r.operandsMatch(p.Operands, cand, style) {
				matches = append(matches, cand)
			}
		}

		if len(matches) > 0 {
			break
		}

		if p.Kind == ast.OpAdd || p.Kind == ast.OpMultiple || p.Kind == ast.OpBitAnd ||
			p.Kind == ast.OpBitOr || p.Kind == ast.OpBitXor || p.Kind == ast.OpEqual {
			swapped := swapOperands(p.Operands)

			for _, cand := range candidates {
				if r.operandsMatch(swapped, cand, style) {
					matches = append(matches, cand)
				}
			}

			if len(matches) > 0 {
				p.Operands = swapped

				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return false
	case 1:
		resolved := &ast.ResolvedOperatorExpr{
			Expression: p.Expression,
			Operator:   matches[0].ToNodeSignature(),
			Operands:   p.Operands,
		}
		resolved.Type = matches[0].EvaluateResult(p.Operands)
		resolved.Resolved = true
		replaceNodePayload(n, resolved)

		return true
	default:
		if allSameHook(matches) {
			resolved := &ast.ResolvedOperatorExpr{
				Expression: p.Expression,
				Operator:   matches[0].ToNodeSignature(),
				Operands:   p.Operands,
			}
			resolved.Type = matches[0].EvaluateResult(p.Operands)
			resolved.Resolved = true
			replaceNodePayload(n, resolved)

			return true
		}

		n.AddError("ambiguous operator use: multiple candidate signatures match", ast.Normal)

		return false
	}
}

// resolveCast is the Cast operator's privileged generic::CastedCoercion
// match (spec 4.7): it bypasses the registry entirely, succeeding
// whenever the coercion engine alone can convert the source expression
// to the type named by the second operand.
func (r *Resolver) resolveCast(n *ast.Node, p *ast.UnresolvedOperatorExpr) bool {
	if len(p.Operands) != 2 {
		return false
	}

	target := ast.ExprType(p.Operands[1])
	if target == nil {
		return false
	}

	result, err := r.engine.Coerce(p.Operands[0], target, coerce.TryAllForMatching)
	if err != nil {
		return false
	}

	sig := operator.Signature{Kind: ast.OpCast, Namespace: "generic", Name: "CastedCoercion", Result: target}
	resolved := &ast.ResolvedOperatorExpr{
		Expression: p.Expression,
		Operator:   sig.ToNodeSignature(),
		Operands:   []*ast.Node{result.Expr},
	}
	resolved.Type = target
	resolved.Resolved = true
	replaceNodePayload(n, resolved)

	return true
}

func allSameHook(matches []operator.Signature) bool {
	for i := 1; i < len(matches); i++ {
		if matches[i].Name != matches[0].Name || matches[i].Namespace != matches[0].Namespace {
			return false
		}
	}

	return true
}

func swapOperands(ops []*ast.Node) []*ast.Node {
	if len(ops) != 2 {
		return ops
	}

	return []*ast.Node{ops[1], ops[0]}
}

func (r *Resolver) operandsMatch(operands []*ast.Node, sig operator.Signature, style coerce.Style) bool {
	if len(operands) != len(sig.Operands) {
		return false
	}

	for i, op := range operands {
		if !r.engine.CanCoerce(op, sig.Operands[i].Type, style) {
			return false
		}
	}

	return true
}

// replaceNodePayload swaps n's payload in place; the context-level
// Replace is used for structural child swaps, but an operator resolving
// in place keeps the same node identity, matching the "commit-in-place"
// transactional discipline of spec 5.
func replaceNodePayload(n *ast.Node, p ast.Payload) {
	n.Payload = p
}

// resolveAssignment rewrites `map[k] = v`, `struct.constMember = v`, and
// tuple-target assignments into their dedicated operator forms, and
// otherwise coerces the source to the plain target's type (spec 4.7,
// "Assignment rewrites").
func (r *Resolver) resolveAssignment(n *ast.Node, p *ast.AssignExpr) bool {
	if p.Resolved {
		return false
	}

	if index, ok := p.Target.Payload.(*ast.ResolvedOperatorExpr); ok && index.Operator.Kind == ast.OpIndex {
		return r.resolveIndexAssign(n, p, index)
	}

	if isTupleCtor(p.Target) {
		return r.resolveTupleAssign(n, p)
	}

	targetType := exprQualifiedType(p.Target)
	if targetType == nil {
		return false
	}

	if member, ok := p.Target.Payload.(*ast.MemberExpr); ok && targetType.Const == types.Const {
		nonConst := *targetType
		nonConst.Const = types.NonConst
		rewritten := *member
		rewritten.Type = &nonConst
		replaceNodePayload(p.Target, &rewritten)
		targetType = &nonConst
	}

	res, err := r.engine.Coerce(p.Value, targetType, coerce.TryAllForAssignment)
	if err != nil {
		n.AddError(err.Error(), ast.Normal)

		return false
	}

	if !res.Unchanged {
		p.Value = res.Expr
	}

	p.Type = targetType
	p.Resolved = true

	return true
}

// resolveIndexAssign rewrites `map[k] = v`, where `map[k]` has already
// resolved to an Index ResolvedOperatorExpr, into a call to the
// registered IndexAssign operator matching the index's own operands plus
// the assignment's value (spec 4.7: "map[k] = v -> IndexAssign").
func (r *Resolver) resolveIndexAssign(n *ast.Node, p *ast.AssignExpr, index *ast.ResolvedOperatorExpr) bool {
	base := index.Operands

	for _, sig := range r.registry.ByKind(ast.OpIndexAssign) {
		if len(sig.Operands) != len(base)+1 {
			continue
		}

		probe := append(append([]*ast.Node{}, base...), p.Value)
		if !r.operandsMatch(probe, sig, coerce.TryAllForAssignment) {
			continue
		}

		value := p.Value
		valueTarget := sig.Operands[len(sig.Operands)-1].Type

		if res, err := r.engine.Coerce(p.Value, valueTarget, coerce.TryAllForAssignment); err == nil && !res.Unchanged {
			value = res.Expr
		}

		operands := append(append([]*ast.Node{}, base...), value)
		resolved := &ast.ResolvedOperatorExpr{
			Expression: p.Expression,
			Operator:   sig.ToNodeSignature(),
			Operands:   operands,
		}
		resolved.Type = sig.EvaluateResult(operands)
		resolved.Resolved = true
		replaceNodePayload(n, resolved)

		return true
	}

	n.AddError("no applicable IndexAssign operator for this index target", ast.Normal)

	return false
}

// resolveTupleAssign rewrites a tuple-LHS assignment into a call to the
// registered tuple::CustomAssign operator, preserving per-element
// constness of the target rather than coercing through a single flattened
// tuple type (spec 4.7).
func (r *Resolver) resolveTupleAssign(n *ast.Node, p *ast.AssignExpr) bool {
	candidates := r.registry.ByName("CustomAssign")
	if len(candidates) == 0 {
		return false
	}

	targetType := exprQualifiedType(p.Target)
	if targetType == nil {
		return false
	}

	res, err := r.engine.Coerce(p.Value, targetType, coerce.TryAllForAssignment)
	if err != nil {
		n.AddError(err.Error(), ast.Normal)

		return false
	}

	sig := candidates[0]
	operands := []*ast.Node{p.Target, res.Expr}
	resolved := &ast.ResolvedOperatorExpr{
		Expression: p.Expression,
		Operator:   sig.ToNodeSignature(),
		Operands:   operands,
	}
	resolved.Type = sig.EvaluateResult(operands)
	resolved.Resolved = true
	replaceNodePayload(n, resolved)

	return true
}

func isTupleCtor(n *ast.Node) bool {
	ctorExpr, ok := n.Payload.(*ast.CtorExpr)
	if !ok {
		return false
	}

	_, ok = ctorExpr.Ctor.Payload.(*ast.TupleCtor)

	return ok
}

// exprQualifiedType is a local alias for ast.ExprType, kept so the many
// call sites in this file read as resolver-local lookups.
func exprQualifiedType(n *ast.Node) *types.QualifiedType {
	return ast.ExprType(n)
}

// coerceToBool coerces cond to bool under contextual conversion (spec 4.7,
// "If/While/Assert conditions"). Returns the node that should replace
// cond in its owning statement and whether a replacement happened; the
// caller is responsible for writing the returned node back since cond
// itself does not know which field of which statement holds it.
func (r *Resolver) coerceToBool(cond *ast.Node) (*ast.Node, bool) {
	if cond == nil {
		return cond, false
	}

	target := types.NewQualifiedType(types.NewBoolType(), types.NonConst, types.RHS)

	res, err := r.engine.Coerce(cond, target, coerce.TryExactMatch|coerce.ContextualConversion)
	if err != nil {
		cond.AddError(err.Error(), ast.Normal)

		return cond, false
	}

	return res.Expr, !res.Unchanged
}

// resolveListComprehension infers the element type from the source
// container's element type (spec 4.7).
func (r *Resolver) resolveListComprehension(n *ast.Node, p *ast.ListComprehensionExpr) bool {
	srcType := exprQualifiedType(p.Source)
	if srcType == nil {
		return false
	}

	elem := srcType.Underlying().ElementType()
	if elem == nil {
		return false
	}

	if ld, ok := p.Local.Payload.(*ast.LocalVariableDecl); ok && ld.Type == nil {
		ld.Type = elem

		return true
	}

	return false
}

// resolveForLoopLocal types the loop variable from the sequence's
// iterator's dereferenced type (spec 4.7).
func (r *Resolver) resolveForLoopLocal(n *ast.Node, p *ast.ForStmt) bool {
	seqType := exprQualifiedType(p.Sequence)
	if seqType == nil {
		return false
	}

	iter := seqType.Underlying().IteratorType()
	if iter == nil {
		return false
	}

	deref := iter.Underlying().DereferencedType()
	if deref == nil {
		deref = seqType.Underlying().ElementType()
	}

	if ld, ok := p.Local.Payload.(*ast.LocalVariableDecl); ok && ld.Type == nil && deref != nil {
		ld.Type = deref

		return true
	}

	return false
}

// resolveSwitch preprocesses each case literal into an equality
// comparison against the switch condition (spec 4.7); modelled here as
// setting up a coercion target for each case so overload resolution can
// later match it as a normal Equal operator.
func (r *Resolver) resolveSwitch(n *ast.Node, p *ast.SwitchStmt) bool {
	condType := exprQualifiedType(p.Cond)
	if condType == nil {
		return false
	}

	changed := false

	for ci := range p.Cases {
		for ei, expr := range p.Cases[ci].Exprs {
			res, err := r.engine.Coerce(expr, condType, coerce.TryAllForMatching)
			if err == nil && !res.Unchanged {
				p.Cases[ci].Exprs[ei] = res.Expr
				changed = true
			}
		}
	}

	return changed
}

// resolveImport lazily resolves an import the first time it is visited,
// registering the target module's UID as a dependency (spec 4.7).
func (r *Resolver) resolveImport(n *ast.Node, p *ast.ImportedModuleDecl) bool {
	if p.Resolved {
		return false
	}

	if target, ok := r.ctx.GetModuleByScope(p.TargetID, p.Scope); ok {
		if td, ok := target.Payload.(*ast.ModuleDecl); ok {
			p.UID = ast.UID{Path: td.Name, ID: td.ModuleID}
			p.Resolved = true

			return true
		}
	}

	return false
}

// propagateAuto records an auto-typed declaration's inferred type from
// its initializer (spec 4.7, "Auto propagation").
func (r *Resolver) propagateAuto(t *types.QualifiedType, init *ast.Node) bool {
	if t == nil || init == nil {
		return false
	}

	if _, isAuto := t.Type.(*types.AutoType); !isAuto {
		return false
	}

	initType := exprQualifiedType(init)
	if initType == nil {
		return false
	}

	*t = *initType

	return true
}

func (r *Resolver) propagateAutoFromDefault(p *ast.ParameterDecl) bool {
	return r.propagateAuto(p.Type, p.Default)
}

// inferFunctionReturnAuto scans a function body for a resolved `return
// <e>` to infer an auto return type (spec 4.7).
func (r *Resolver) inferFunctionReturnAuto(fn *ast.FunctionDecl) bool {
	if fn.Type == nil || fn.Type.Result == nil {
		return false
	}

	if _, isAuto := fn.Type.Result.Type.(*types.AutoType); !isAuto {
		return false
	}

	var found *types.QualifiedType

	var walk func(*ast.Node)
	walk = func(n *ast.Node) {
		if n == nil || found != nil {
			return
		}

		if ret, ok := n.Payload.(*ast.ReturnStmt); ok && ret.Value != nil {
			if t := exprQualifiedType(ret.Value); t != nil {
				found = t

				return
			}
		}

		for _, c := range n.Children() {
			walk(c)
		}
	}

	walk(fn.Body)

	if found == nil {
		return false
	}

	*fn.Type.Result = *found

	return true
}

// resolveCtor infers container/tuple/struct ctor types from their
// elements (spec 4.7, "Ctors").
func (r *Resolver) resolveCtor(n *ast.Node, p *ast.CtorExpr) bool {
	if p.Type != nil {
		return false
	}

	switch c := p.Ctor.Payload.(type) {
	case *ast.TupleCtor:
		elems := make([]*types.QualifiedType, 0, len(c.Elements))

		for _, e := range c.Elements {
			t := exprQualifiedType(e)
			if t == nil {
				return false
			}

			elems = append(elems, t)
		}

		p.Type = types.NewQualifiedType(types.NewTupleType(elems), types.NonConst, types.RHS)

		return true
	case *ast.ListCtor:
		return r.inferHomogeneous(p, c.Elements, func(e *types.QualifiedType) types.UnqualifiedType {
			return types.NewListType(e)
		})
	case *ast.VectorCtor:
		return r.inferHomogeneous(p, c.Elements, func(e *types.QualifiedType) types.UnqualifiedType {
			return types.NewVectorType(e)
		})
	case *ast.SetCtor:
		return r.inferHomogeneous(p, c.Elements, func(e *types.QualifiedType) types.UnqualifiedType {
			return types.NewSetType(e)
		})
	case *ast.MapCtor:
		if len(c.Entries) == 0 {
			unknown := func() *types.QualifiedType {
				return types.NewQualifiedType(types.NewAutoType(), types.NonConst, types.RHS)
			}

			p.Type = types.NewQualifiedType(types.NewMapType(unknown(), unknown()), types.NonConst, types.RHS)

			return true
		}

		kt := exprQualifiedType(c.Entries[0].Key)
		vt := exprQualifiedType(c.Entries[0].Value)

		if kt == nil || vt == nil {
			return false
		}

		p.Type = types.NewQualifiedType(types.NewMapType(kt, vt), types.NonConst, types.RHS)

		return true
	case *ast.StructCtor:
		fields := make([]types.StructField, 0, len(c.Fields))

		for _, f := range c.Fields {
			t := exprQualifiedType(f.Value)
			if t == nil {
				return false
			}

			fields = append(fields, types.StructField{Name: f.Name, Type: t})
		}

		p.Type = types.NewQualifiedType(types.NewStructType(fields, true), types.NonConst, types.RHS)

		return true
	}

	return false
}

func (r *Resolver) inferHomogeneous(p *ast.CtorExpr, elements []*ast.Node,
	mk func(*types.QualifiedType) types.UnqualifiedType) bool {
	if len(elements) == 0 {
		p.Type = types.NewQualifiedType(mk(types.NewQualifiedType(types.NewAutoType(), types.NonConst, types.RHS)),
			types.NonConst, types.RHS)

		return true
	}

	first := exprQualifiedType(elements[0])
	if first == nil {
		return false
	}

	for _, e := range elements[1:] {
		t := exprQualifiedType(e)
		if t == nil {
			return false
		}

		if !types.Same(t, first) {
			return false // mixed types: fail gracefully, leave unresolved
		}
	}

	p.Type = types.NewQualifiedType(mk(first), types.NonConst, types.RHS)

	return true
}
