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
package spicy

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
)

var loweringLog = log.WithField("stream", "spicy-codegen")

// Lowering implements C11: the multi-pass rewriter that turns Spicy-only
// AST shapes into their equivalent HILTI shapes (spec 4.11).  Pass 1 runs
// once per Lowering instance (unit types become compiled structs, and
// invokes C12 to attach their generated parse functions); pass 2 is
// retried by the caller until it reports no more changes; pass 3 strips
// leftover coercion wrappers.
type Lowering struct {
	ctx         *ast.Context
	structs     map[string]*types.StructType
	unitStructs map[*types.StructType]bool
	pass1Done   bool
}

// NewLowering constructs a lowering pass bound to ctx.
func NewLowering(ctx *ast.Context) *Lowering {
	return &Lowering{
		ctx:         ctx,
		structs:     make(map[string]*types.StructType),
		unitStructs: make(map[*types.StructType]bool),
	}
}

// Run executes one lowering round over root: pass 1 (only the first
// time), one iteration of pass 2's rewrite table, and pass 3.  The
// caller (the Spicy plugin's ast_transform callback, driven by the
// driver loop's per-plugin transform step) retries Run until it returns
// false, giving pass 2 its fixed point while keeping pass 1 single-shot.
func (l *Lowering) Run(root *ast.Node) bool {
	changed := false

	if !l.pass1Done {
		if l.runPass1(root) {
			changed = true
		}

		l.pass1Done = true
	}

	if l.runPass2(root) {
		changed = true
	}

	if l.runPass3(root) {
		changed = true
	}

	return changed
}

// --- Pass 1: unit types -> compiled structs (run once) ---------------

func (l *Lowering) runPass1(root *ast.Node) bool {
	changed := false

	var unitDecls []*ast.Node

	collectUnitTypeDecls(root, &unitDecls)

	for _, td := range unitDecls {
		l.lowerUnitDecl(td)

		changed = true
	}

	if l.lowerUnitCtors(root) {
		changed = true
	}

	if l.lowerSinkTypes(root) {
		changed = true
	}

	return changed
}

func collectUnitTypeDecls(n *ast.Node, out *[]*ast.Node) {
	if n == nil {
		return
	}

	if td, ok := n.Payload.(*ast.TypeDecl); ok {
		if _, isUnit := td.Type.Underlying().(*types.UnitType); isUnit {
			*out = append(*out, n)
		}
	}

	for _, c := range n.Children() {
		collectUnitTypeDecls(c, out)
	}
}

// lowerUnitDecl replaces one Spicy Unit type declaration with the
// equivalent compiled HILTI struct, generates its parse functions via
// C12, and lowers its hook declarations into HILTI functions (spec
// 4.11's construct table, last three rows; scenario 4).
func (l *Lowering) lowerUnitDecl(td *ast.Node) {
	decl := td.Payload.(*ast.TypeDecl)
	unit := decl.Type.Underlying().(*types.UnitType)

	fqID := decl.FullyQualifiedID()
	if fqID == "" {
		fqID = decl.Name
	}

	stream := types.NewStreamType()

	errType := types.NewQualifiedType(
		types.NewOptionalType(types.NewQualifiedType(
			types.NewLibraryType("hilti::rt::RecoverableFailure"), types.NonConst, types.RHS)),
		types.NonConst, types.RHS)

	fields := make([]types.StructField, 0, len(unit.Fields)+4)
	fields = append(fields, unit.Fields...)
	fields = append(fields,
		types.StructField{Name: "__offset", Internal: true,
			Type: types.NewQualifiedType(types.NewIntType(false, 64), types.NonConst, types.RHS)},
		types.StructField{Name: "__begin", Internal: true, Optional: true, Type: stream.IteratorType()},
		types.StructField{Name: "__error", Internal: true, Optional: true, Type: errType},
		types.StructField{Name: "__stop", Internal: true,
			Type: types.NewQualifiedType(types.NewBoolType(), types.NonConst, types.RHS)},
	)

	compiled := types.NewStructType(fields, false)
	compiled.Decl = &decl.Declaration

	oldUnit := unit
	decl.Type.Type = compiled
	decl.SetOnHeap(true)

	l.structs[fqID] = compiled
	l.unitStructs[compiled] = true

	retargetNameTypes(l.ctx.Root(), oldUnit, compiled)

	var fieldNodes, hookNodes []*ast.Node

	for _, c := range td.Children() {
		switch c.Payload.(type) {
		case *ast.FieldDecl:
			fieldNodes = append(fieldNodes, c)
		case *ast.UnitHookDecl:
			hookNodes = append(hookNodes, c)
		}
	}

	module := enclosingModule(td)
	if module == nil {
		module = l.ctx.Root()
	}

	grammar := NewGrammarBuilder().Build(fqID, fieldNodes)
	parserBuilder := NewParserBuilder(l.ctx)
	parserBuilder.GenerateParseFunctions(module, fqID, grammar, false, false)

	for _, hook := range hookNodes {
		l.lowerHook(module, hook, compiled)
	}

	loweringLog.Debugf("lowered unit %s into a %d-field struct", fqID, len(fields))
}

// lowerHook translates a declaration-time unit hook into a HILTI
// Function declaration, named per spec 4.11's table: __on_<id> for a
// field/event hook and __str__ for the %str hook. Container hooks get
// the same plain __on_<id> name; no _foreach variant is produced.  %-prefixed well-known hooks (%init,
// %done, ...) get their '%' escaped as "0x25" (scenario 4: "%done" ->
// "__on_0x25_done").
func (l *Lowering) lowerHook(module *ast.Node, hookNode *ast.Node, unitStruct *types.StructType) {
	hook := hookNode.Payload.(*ast.UnitHookDecl)
	name := hookFunctionName(hook.HookName)

	fnNode := l.ctx.NewNode(module, &ast.FunctionDecl{
		Declaration: ast.Declaration{Kind: ast.DeclFunction, Name: name, Linkage: ast.Private},
		IsHook:      true,
	})
	fn := fnNode.Payload.(*ast.FunctionDecl)

	selfType := types.NewQualifiedType(types.NewValueReferenceType(
		types.NewQualifiedType(unitStruct, types.NonConst, types.RHS)), types.NonConst, types.RHS)

	selfParam := l.ctx.NewNode(fnNode, &ast.ParameterDecl{
		Declaration: ast.Declaration{Kind: ast.DeclParameter, Name: "self"},
		Type:        selfType,
		Operand:     ast.OperandIn,
	})
	fn.Parameters = []*ast.Node{selfParam}
	fn.Type = types.NewFunctionType([]*types.QualifiedType{selfType},
		types.NewQualifiedType(types.NewVoidType(), types.NonConst, types.RHS))

	if hook.Body != nil {
		l.ctx.Detach(hook.Body)
		l.ctx.Attach(fnNode, hook.Body)
		fn.Body = hook.Body
	}

	l.ctx.Detach(hookNode)
}

func hookFunctionName(hookName string) string {
	if hookName == "%str" {
		return "__str__"
	}

	if strings.HasPrefix(hookName, "%") {
		return "__on_0x25_" + hookName[1:]
	}

	return "__on_" + hookName
}

func enclosingModule(n *ast.Node) *ast.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.Payload.(*ast.ModuleDecl); ok {
			return p
		}
	}

	return nil
}

// lowerUnitCtors rewrites Spicy Unit ctors into equivalent HILTI struct
// ctors in place: same node identity, matching spec 5's commit-in-place
// transactional discipline and the resolver's own payload-swap idiom.
func (l *Lowering) lowerUnitCtors(root *ast.Node) bool {
	changed := false

	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}

		if ctorExpr, ok := n.Payload.(*ast.CtorExpr); ok && ctorExpr.Ctor != nil {
			if uc, ok := ctorExpr.Ctor.Payload.(*ast.UnitCtor); ok {
				ctorExpr.Ctor.Payload = &ast.StructCtor{
					Ctor:   ast.Ctor{Kind: ast.CtorStruct, Type: uc.Type},
					Fields: uc.Fields,
				}
				changed = true
			}
		}

		for _, c := range n.Children() {
			walk(c)
		}
	}

	walk(root)

	return changed
}

// lowerSinkTypes rewrites every occurrence of the Spicy Sink type into
// strong_ref<spicy_rt::Sink> (spec 4.11's construct table).
func (l *Lowering) lowerSinkTypes(root *ast.Node) bool {
	changed := false

	walkQualifiedTypeSites(root, func(qt *types.QualifiedType) {
		if _, ok := qt.Type.(*types.SinkType); ok {
			qt.Type = types.NewStrongReferenceType(
				types.NewQualifiedType(types.NewLibraryType("spicy_rt::Sink"), types.NonConst, types.RHS))
			changed = true
		}
	})

	return changed
}

// retargetNameTypes repoints every unresolved-then-resolved Name type
// whose Target was the pre-lowering Unit type at oldUnit to the compiled
// struct, so existing resolved references keep working (spec 4.11's
// construct table: "Reference to named unit type -> typeName(id)").
func retargetNameTypes(root *ast.Node, oldUnit types.UnqualifiedType, compiled *types.StructType) {
	walkQualifiedTypeSites(root, func(qt *types.QualifiedType) {
		if nm, ok := qt.Type.(*types.NameType); ok && nm.Target == oldUnit {
			nm.Target = compiled
		}
	})
}

// walkQualifiedTypeSites visits every QualifiedType directly reachable
// from a declaration or expression node in the tree.
func walkQualifiedTypeSites(n *ast.Node, fn func(*types.QualifiedType)) {
	if n == nil {
		return
	}

	if qt := declaredOrExprType(n); qt != nil {
		fn(qt)
	}

	for _, c := range n.Children() {
		walkQualifiedTypeSites(c, fn)
	}
}

func declaredOrExprType(n *ast.Node) *types.QualifiedType {
	switch p := n.Payload.(type) {
	case *ast.TypeDecl:
		return p.Type
	case *ast.ConstantDecl:
		return p.Type
	case *ast.GlobalVariableDecl:
		return p.Type
	case *ast.LocalVariableDecl:
		return p.Type
	case *ast.ParameterDecl:
		return p.Type
	case *ast.FieldDecl:
		return p.Type
	case *ast.NameExpr:
		return p.Type
	case *ast.MemberExpr:
		return p.Type
	case *ast.CtorExpr:
		return p.Type
	case *ast.AssignExpr:
		return p.Type
	case *ast.ResolvedOperatorExpr:
		return p.Type
	case *ast.UnresolvedOperatorExpr:
		return p.Type
	case *ast.KeywordExpr:
		return p.Type
	default:
		return nil
	}
}

// --- Pass 2: fixed-point construct rewrite ----------------------------

func (l *Lowering) runPass2(n *ast.Node) bool {
	if n == nil {
		return false
	}

	changed := false

	for _, c := range append([]*ast.Node(nil), n.Children()...) {
		if l.runPass2(c) {
			changed = true
		}
	}

	if l.rewriteNode(n) {
		changed = true
	}

	return changed
}

func (l *Lowering) rewriteNode(n *ast.Node) bool {
	switch p := n.Payload.(type) {
	case *ast.UnresolvedOperatorExpr:
		return l.rewriteUnitMethodCall(n, p)
	case *ast.PrintStmt:
		l.rewritePrint(n, p)
		return true
	case *ast.ConfirmStmt:
		l.rewriteConfirmOrReject(n, "spicy_rt::confirm")
		return true
	case *ast.RejectStmt:
		l.rewriteConfirmOrReject(n, "spicy_rt::reject")
		return true
	case *ast.StopStmt:
		l.rewriteStop(n)
		return true
	default:
		return false
	}
}

// sinkMethods are the spec's "sink.* methods" lowered to member calls on
// the runtime Sink type.
var sinkMethods = map[string]bool{
	"close": true, "connect": true, "disconnect": true, "gap": true,
	"sequence_number": true, "set_auto_trim": true, "set_initial_sequence_number": true,
	"skip": true, "trim": true, "write": true,
}

func (l *Lowering) rewriteUnitMethodCall(n *ast.Node, p *ast.UnresolvedOperatorExpr) bool {
	if p.Kind != ast.OpMemberCall || len(p.Operands) == 0 {
		return false
	}

	base := p.Operands[0]
	args := p.Operands[1:]

	isUnit := l.isUnitExpr(base)
	isSink := !isUnit && l.isSinkExpr(base)

	applicable := false

	switch {
	case isUnit && (p.MemberID == "offset" || p.MemberID == "position" || p.MemberID == "input" ||
		p.MemberID == "find" || p.MemberID == "context" || p.MemberID == "backtrack" || p.MemberID == "forward" ||
		p.MemberID == "forward_eod"):
		applicable = true
	case isUnit && p.MemberID == "set_input" && len(args) == 1:
		applicable = true
	case isUnit && p.MemberID == "connect_filter" && len(args) == 1:
		applicable = true
	case isSink && sinkMethods[p.MemberID]:
		applicable = true
	}

	if !applicable {
		return false
	}

	l.ctx.Detach(base)
	for _, a := range args {
		l.ctx.Detach(a)
	}

	switch {
	case p.MemberID == "offset":
		l.swap(n, l.memberOf(base, "__offset"))
	case p.MemberID == "position":
		begin := l.memberOf(l.dup(base), "__begin")
		offset := l.memberOf(base, "__offset")
		l.swap(n, l.binOp(ast.OpSum, l.derefOf(begin), offset))
	case p.MemberID == "input":
		l.swap(n, l.derefOf(l.memberOf(base, "__begin")))
	case p.MemberID == "set_input":
		l.swap(n, l.assignOf(l.memberOf(base, "__position_update"), args[0]))
	case p.MemberID == "find":
		l.swap(n, l.builtinCall("spicy_rt::unit_find", append([]*ast.Node{base}, args...)...))
	case p.MemberID == "context":
		l.swap(n, l.memberOf(base, "__context"))
	case p.MemberID == "backtrack":
		l.swap(n, l.builtinCall("spicy_rt::backtrack", base))
	case p.MemberID == "connect_filter":
		l.swap(n, l.builtinCall("spicy_rt::connect_filter", base, args[0]))
	case p.MemberID == "forward":
		l.swap(n, l.builtinCall("spicy_rt::forward", append([]*ast.Node{base}, args...)...))
	case p.MemberID == "forward_eod":
		l.swap(n, l.builtinCall("spicy_rt::forward_eod", base))
	default:
		l.swap(n, l.builtinCall("spicy_rt::sink_"+p.MemberID, append([]*ast.Node{base}, args...)...))
	}

	return true
}

func (l *Lowering) rewritePrint(n *ast.Node, p *ast.PrintStmt) {
	name := "hilti::print"
	if len(p.Args) > 1 {
		name = "hilti::printValues"
	}

	args := append([]*ast.Node(nil), p.Args...)
	for _, a := range args {
		l.ctx.Detach(a)
	}

	l.swap(n, l.wrapExprStmt(l.builtinCall(name, args...)))
}

func (l *Lowering) rewriteConfirmOrReject(n *ast.Node, runtimeFn string) {
	self := l.newDetached(&ast.KeywordExpr{Expression: ast.Expression{Kind: ast.ExprKeyword}, Keyword: ast.KeywordSelf})
	l.swap(n, l.wrapExprStmt(l.builtinCall(runtimeFn, l.derefOf(self))))
}

func (l *Lowering) wrapExprStmt(expr *ast.Node) *ast.Node {
	n := l.newDetachedAttached(&ast.ExpressionStmt{Statement: ast.Statement{Kind: ast.StmtExpression}}, expr)
	n.Payload.(*ast.ExpressionStmt).Expr = expr

	return n
}

func (l *Lowering) rewriteStop(n *ast.Node) {
	self := l.newDetached(&ast.KeywordExpr{Expression: ast.Expression{Kind: ast.ExprKeyword}, Keyword: ast.KeywordSelf})
	stopField := l.memberOf(self, "__stop")

	boolType := types.NewQualifiedType(types.NewBoolType(), types.NonConst, types.RHS)
	trueCtorNode := l.newDetached(&ast.BoolCtor{Ctor: ast.Ctor{Kind: ast.CtorBool, Type: boolType}, Value: true})
	trueExpr := l.newDetachedAttached(&ast.CtorExpr{Expression: ast.Expression{Kind: ast.ExprCtor, Type: boolType}}, trueCtorNode)
	trueExpr.Payload.(*ast.CtorExpr).Ctor = trueCtorNode

	assign := l.assignOf(stopField, trueExpr)
	assignStmt := l.newDetachedAttached(&ast.ExpressionStmt{Statement: ast.Statement{Kind: ast.StmtExpression}}, assign)
	assignStmt.Payload.(*ast.ExpressionStmt).Expr = assign

	retStmt := l.newDetached(&ast.ReturnStmt{Statement: ast.Statement{Kind: ast.StmtReturn}})

	block := l.newDetached(&ast.BlockStmt{Statement: ast.Statement{Kind: ast.StmtBlock}})
	l.ctx.Attach(block, assignStmt)
	l.ctx.Attach(block, retStmt)
	block.Payload.(*ast.BlockStmt).Body = []*ast.Node{assignStmt, retStmt}

	l.swap(n, block)
}

// --- Pass 3: strip leftover coercion wrappers -------------------------

func (l *Lowering) runPass3(n *ast.Node) bool {
	if n == nil {
		return false
	}

	changed := false

	for _, c := range append([]*ast.Node(nil), n.Children()...) {
		if l.runPass3(c) {
			changed = true
		}
	}

	if ce, ok := n.Payload.(*ast.CoercedExpr); ok && ce.Inner != nil {
		inner := ce.Inner

		l.ctx.Detach(inner)

		grandchildren := append([]*ast.Node(nil), inner.Children()...)
		for _, gc := range grandchildren {
			l.ctx.Detach(gc)
		}

		n.Payload = inner.Payload

		for _, gc := range grandchildren {
			l.ctx.Attach(n, gc)
		}

		changed = true
	}

	return changed
}

// --- Node-construction helpers -----------------------------------------

// newDetached builds a context-owned node with no parent, by attaching it
// under the root and immediately detaching it; ast.Context exposes no
// other way to mint a node ahead of knowing its final parent, and this
// keeps node identity/ownership bookkeeping entirely inside the context.
func (l *Lowering) newDetached(p ast.Payload) *ast.Node {
	n := l.ctx.NewNode(l.ctx.Root(), p)
	l.ctx.Detach(n)

	return n
}

func (l *Lowering) newDetachedAttached(p ast.Payload, child *ast.Node) *ast.Node {
	n := l.newDetached(p)
	l.ctx.Attach(n, child)

	return n
}

// swap grafts built's payload and children onto old and discards built's
// own node shell, so old's identity (and therefore any sibling payload
// field that already points at old, e.g. a MemberExpr.Base or an
// ExpressionStmt.Expr) survives the rewrite unchanged (spec 3: node
// replacement must not invalidate outstanding references to a node).
func (l *Lowering) swap(old, built *ast.Node) {
	children := append([]*ast.Node(nil), built.Children()...)
	for _, c := range children {
		l.ctx.Detach(c)
	}

	for _, c := range append([]*ast.Node(nil), old.Children()...) {
		l.ctx.Detach(c)
	}

	old.Payload = built.Payload

	for _, c := range children {
		l.ctx.Attach(old, c)
	}
}

func (l *Lowering) memberOf(base *ast.Node, name string) *ast.Node {
	n := l.newDetachedAttached(&ast.MemberExpr{Expression: ast.Expression{Kind: ast.ExprMember}, Member: name}, base)
	n.Payload.(*ast.MemberExpr).Base = base

	return n
}

func (l *Lowering) derefOf(base *ast.Node) *ast.Node {
	return l.opOf(ast.OpDeref, base)
}

func (l *Lowering) binOp(kind ast.OperatorKind, lhs, rhs *ast.Node) *ast.Node {
	return l.opOf(kind, lhs, rhs)
}

func (l *Lowering) opOf(kind ast.OperatorKind, operands ...*ast.Node) *ast.Node {
	n := l.newDetached(&ast.ResolvedOperatorExpr{
		Expression: ast.Expression{Kind: ast.ExprResolvedOperator},
		Operator:   ast.Signature{Kind: kind, Namespace: "hilti"},
	})

	for _, o := range operands {
		l.ctx.Attach(n, o)
	}

	n.Payload.(*ast.ResolvedOperatorExpr).Operands = operands

	return n
}

func (l *Lowering) assignOf(target, value *ast.Node) *ast.Node {
	n := l.newDetached(&ast.AssignExpr{Expression: ast.Expression{Kind: ast.ExprAssign}})
	l.ctx.Attach(n, target)
	l.ctx.Attach(n, value)
	n.Payload.(*ast.AssignExpr).Target = target
	n.Payload.(*ast.AssignExpr).Value = value

	return n
}

func (l *Lowering) builtinCall(name string, args ...*ast.Node) *ast.Node {
	n := l.newDetached(&ast.BuiltInFunctionExpr{Expression: ast.Expression{Kind: ast.ExprBuiltInFunction}, Name: name})

	for _, a := range args {
		l.ctx.Attach(n, a)
	}

	n.Payload.(*ast.BuiltInFunctionExpr).Args = args

	return n
}

// dup shallow-copies a simple expression that a rewrite needs to
// reference twice (e.g. "position" reads both __begin and __offset off
// the same base); only the shapes the unit-method rewrites actually
// produce as a base expression are handled.
func (l *Lowering) dup(n *ast.Node) *ast.Node {
	switch p := n.Payload.(type) {
	case *ast.KeywordExpr:
		return l.newDetached(&ast.KeywordExpr{Expression: ast.Expression{Kind: ast.ExprKeyword, Type: p.Type}, Keyword: p.Keyword})
	case *ast.NameExpr:
		return l.newDetached(&ast.NameExpr{Expression: ast.Expression{Kind: ast.ExprName, Type: p.Type}, Path: p.Path, Decl: p.Decl})
	default:
		return n
	}
}

func (l *Lowering) exprType(n *ast.Node) *types.QualifiedType {
	return declaredOrExprType(n)
}

// resolveThroughRef follows one level of strong/weak/value reference
// wrapping, so a `self` parameter of type value_ref<T> (the shape every
// lowered unit method and hook receives) resolves to T itself.
func resolveThroughRef(u types.UnqualifiedType) types.UnqualifiedType {
	if ref, ok := u.(interface{ DereferencedType() *types.QualifiedType }); ok {
		if d := ref.DereferencedType(); d != nil {
			return types.Follow(d.Type)
		}
	}

	return u
}

func (l *Lowering) isUnitExpr(n *ast.Node) bool {
	qt := l.exprType(n)
	if qt == nil {
		return false
	}

	st, ok := resolveThroughRef(qt.Underlying()).(*types.StructType)

	return ok && l.unitStructs[st]
}

func (l *Lowering) isSinkExpr(n *ast.Node) bool {
	qt := l.exprType(n)
	if qt == nil {
		return false
	}

	if _, ok := qt.Underlying().(*types.SinkType); ok {
		return true
	}

	lib, ok := resolveThroughRef(qt.Underlying()).(*types.LibraryType)

	return ok && lib.CxxName == "spicy_rt::Sink"
}
