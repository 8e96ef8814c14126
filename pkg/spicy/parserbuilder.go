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
	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/types"
	"github.com/hiltilang/hilti-core/pkg/util/collection/stack"
)

var builderLog = log.WithField("stream", "parser-builder")

// State is one frame of the parser builder's mutable code-generation
// state (spec 4.12, "Parser state"): not a runtime value, but the
// compile-time bookkeeping the builder threads through field generation.
type State struct {
	Data        string // the stream value-reference in scope
	Begin       string // unset ("") means "use view start"
	Cur         string
	NCur        string // where to continue after a size-limited region
	Lahead      int    // 0 = none, -1 = EOD
	LaheadEnd   string
	Trim        bool
	Error       string // recoverable-failure slot for trial mode
	Self        string
	Captures    string // regex sub-matches, optional
	LiteralMode LiteralMode
}

// Stack wraps the generic LIFO stack over State frames; the builder
// pushes a frame per nested field and pops it once the field's
// post-processing step has run (spec 4.12, "Parser state": "tracks
// mutable state on a stack").
type Stack struct {
	frames *stack.Stack[*State]
}

// NewStack constructs a parser state stack seeded with a root frame.
func NewStack(self string) *Stack {
	s := &Stack{frames: stack.NewStack[*State]()}
	s.frames.Push(&State{Self: self, Data: "data", Cur: "cur"})

	return s
}

// Top returns the current (innermost) state frame.
func (s *Stack) Top() *State { return s.frames.Peek(0) }

// Push clones the current frame (fields inherit their enclosing state
// unless explicitly overridden) and pushes it as the new top.
func (s *Stack) Push() *State {
	top := *s.Top()
	s.frames.Push(&top)

	return s.Top()
}

// Pop discards the current frame, restoring its parent.
func (s *Stack) Pop() *State { return s.frames.Pop() }

// Builder generates HILTI code implementing a unit's parser from its
// grammar (C12).  Every AST node it produces is created through the
// owning Context so that parent/child links stay consistent; there is no
// free-standing node construction anywhere in this file.
type Builder struct {
	ctx *ast.Context
}

// NewParserBuilder constructs a parser builder over ctx.
func NewParserBuilder(ctx *ast.Context) *Builder {
	return &Builder{ctx: ctx}
}

func unitTypeName(fqID string) *types.QualifiedType {
	return types.NewQualifiedType(types.NewNameType(fqID), types.NonConst, types.RHS)
}

// GenerateParseFunctions builds the three external parse entry points
// (and, if hasContext, a context_new function) for unit fqID as new
// children of parentModule, per spec 4.12, "Generated parse methods".
func (b *Builder) GenerateParseFunctions(parentModule *ast.Node, fqID string, g *Grammar, isFilter, hasContext bool) []*ast.Node {
	fns := []*ast.Node{
		b.generateEntryPoint(parentModule, fqID+"::parse1", fqID, g, isFilter, false),
		b.generateEntryPoint(parentModule, fqID+"::parse2", fqID, g, isFilter, true),
		b.generateEntryPoint(parentModule, fqID+"::parse3", fqID, g, isFilter, true),
		b.GenerateStage2(parentModule, fqID, g),
	}

	if hasContext {
		fns = append(fns, b.generateContextNew(parentModule, fqID))
	}

	builderLog.Debugf("generated %d parse functions for %s", len(fns), fqID)

	return fns
}

func (b *Builder) generateEntryPoint(parent *ast.Node, name, fqID string, g *Grammar, isFilter, takesSelf bool) *ast.Node {
	fnNode := b.ctx.NewNode(parent, &ast.FunctionDecl{
		Declaration: ast.Declaration{Kind: ast.DeclFunction, Name: name, Linkage: ast.Public},
	})
	fn := fnNode.Payload.(*ast.FunctionDecl)

	var params []*ast.Node
	if takesSelf {
		params = append(params, b.newParam(fnNode, "self", unitTypeName(fqID)))
	}

	params = append(params, b.newParam(fnNode, "data", types.NewQualifiedType(types.NewStreamType(), types.NonConst, types.RHS)))
	fn.Parameters = params
	fn.Type = types.NewFunctionType(paramTypes(params), unitTypeName(fqID))

	body := b.newBlock(fnNode)
	state := NewStack("self")

	b.appendStage1(body, state, isFilter)
	b.appendExprStmt(body, b.runtimeCall(body, "__parse_stage2", b.nameExpr(body, "self"), b.nameExpr(body, state.Top().Data), b.nameExpr(body, "cur")))

	fn.Body = body

	return fnNode
}

func (b *Builder) generateContextNew(parent *ast.Node, fqID string) *ast.Node {
	fnNode := b.ctx.NewNode(parent, &ast.FunctionDecl{
		Declaration: ast.Declaration{Kind: ast.DeclFunction, Name: fqID + "::context_new", Linkage: ast.Public},
	})
	fn := fnNode.Payload.(*ast.FunctionDecl)
	fn.Type = types.NewFunctionType(nil, unitTypeName(fqID+"::Context"))
	fn.Body = b.newBlock(fnNode)

	return fnNode
}

// appendStage1 emits the unit-initialization stage: wiring a filter if
// this unit is one, and setting up the trial-error slot, before stage 2
// is invoked directly or redirected through the filter's output stream
// (spec 4.12, "Generated parse methods"; spec 4.12, "Filters").
func (b *Builder) appendStage1(body *ast.Node, state *Stack, isFilter bool) {
	top := state.Top()
	top.Error = "__error"

	if isFilter {
		b.appendExprStmt(body, b.runtimeCall(body, "spicy_rt::installFilter", b.nameExpr(body, top.Self)))
		top.Data = "__filter_output"
	}
}

// GenerateStage2 builds `U::__parse_stage2`, which walks the grammar's
// root production applying the field parsing contract (spec 4.12,
// "Field parsing contract") as a new child of parentModule.
func (b *Builder) GenerateStage2(parentModule *ast.Node, fqID string, g *Grammar) *ast.Node {
	fnNode := b.ctx.NewNode(parentModule, &ast.FunctionDecl{
		Declaration: ast.Declaration{Kind: ast.DeclFunction, Name: fqID + "::__parse_stage2", Linkage: ast.Private},
	})
	fn := fnNode.Payload.(*ast.FunctionDecl)

	body := b.newBlock(fnNode)
	state := NewStack("self")

	b.emitProduction(body, state, g.Root)

	fn.Body = body

	return fnNode
}

func (b *Builder) emitProduction(body *ast.Node, state *Stack, p *Production) {
	switch p.Kind {
	case Epsilon:
		return
	case Sequence:
		for _, c := range p.RHS {
			b.emitField(body, state, c)
		}
	default:
		b.emitField(body, state, p)
	}
}

// emitField implements the three-step field parsing contract of spec
// 4.12 for a single production: pre-field setup, the kind-dispatched
// body, and post-field bookkeeping.
func (b *Builder) emitField(body *ast.Node, state *Stack, p *Production) {
	if p.Field == nil {
		b.emitBody(body, state, p)
		return
	}

	fd := p.Field.Payload.(*ast.FieldDecl)

	state.Push()
	defer state.Pop()

	frame := state.Top()

	if fd.Attributes != nil {
		if _, ok := fd.Attributes["try"]; ok {
			b.emitTryField(body, state, p, fd)
			return
		}

		if _, ok := fd.Attributes["size"]; ok {
			frame.NCur = "__ncur_" + p.Symbol
			b.appendExprStmt(body, b.runtimeCall(body, "spicy_rt::limitView", b.nameExpr(body, frame.Cur)))
		}

		if _, ok := fd.Attributes["synchronize"]; ok {
			b.emitSynchronizedField(body, state, p, fd)
			return
		}
	}

	b.emitBody(body, state, p)
	b.emitPostField(body, state, p, fd)
}

// emitBody dispatches the production-kind-specific parse step (spec
// 4.12, "Field parsing contract", step 2).
func (b *Builder) emitBody(body *ast.Node, state *Stack, p *Production) {
	top := state.Top()

	switch p.Kind {
	case Ctor:
		b.appendLocal(body, p.Symbol, b.runtimeCall(body, "spicy_rt::parseLiteral", b.nameExpr(body, top.Cur)))
	case Variable:
		b.appendLocal(body, p.Symbol, b.runtimeCall(body, "spicy_rt::parseAtomic", b.nameExpr(body, top.Cur)))
	case Unit:
		b.appendLocal(body, p.Symbol, b.runtimeCall(body, fieldTypeName(p)+"::parse3",
			b.nameExpr(body, top.Self), b.nameExpr(body, top.Data), b.nameExpr(body, top.Cur)))
	case Counter, ForEach, While:
		b.emitContainer(body, state, p)
	case Switch:
		b.emitSwitch(body, state, p)
	case LookAhead:
		b.emitLookAhead(body, state, p)
	case Skip:
		b.appendExprStmt(body, b.runtimeCall(body, "spicy_rt::skip", b.nameExpr(body, top.Cur)))
	}
}

// emitContainer lowers Counter/ForEach/While productions into a loop that
// repeatedly invokes the element production (spec 4.12, "Field parsing
// contract": "containers loop").
func (b *Builder) emitContainer(body *ast.Node, state *Stack, p *Production) {
	whileNode := b.attach(body, &ast.WhileStmt{Statement: ast.Statement{Kind: ast.StmtWhile}})
	ws := whileNode.Payload.(*ast.WhileStmt)

	ws.Cond = b.runtimeCall(whileNode, "spicy_rt::containerContinue", b.nameExpr(whileNode, p.Symbol))
	ws.Body = b.newBlock(whileNode)

	if len(p.RHS) > 0 {
		b.emitBody(ws.Body, state, p.RHS[0])
	}
}

// emitSwitch lowers a Switch production into a SwitchStmt whose cases are
// its tagged alternatives; an unconditional switch carries a single
// default arm.
func (b *Builder) emitSwitch(body *ast.Node, state *Stack, p *Production) {
	top := state.Top()

	swNode := b.attach(body, &ast.SwitchStmt{Statement: ast.Statement{Kind: ast.StmtSwitch}})
	sw := swNode.Payload.(*ast.SwitchStmt)
	sw.Cond = b.nameExpr(swNode, top.Cur)

	for i, alt := range p.RHS {
		caseBody := b.newBlock(swNode)
		b.emitBody(caseBody, state, alt)

		sw.Cases = append(sw.Cases, ast.SwitchCase{Body: caseBody, Default: i == len(p.RHS)-1 && alt.terminal})
	}
}

// emitLookAhead handles a LookAhead production (spec 4.12, "Lookahead"):
// it emits one spicy_rt::lookAhead call over the current view under the
// frame's literal mode, a parse error "ambiguous look-ahead token match"
// when spicy_rt::lookAheadAmbiguous reports a tie, and then the body of
// every alternative in order. The builder itself does not partition the
// first set into regex and plain literals.
func (b *Builder) emitLookAhead(body *ast.Node, state *Stack, p *Production) {
	top := state.Top()

	b.appendLocal(body, p.Symbol+".token", b.runtimeCall(body, "spicy_rt::lookAhead",
		b.nameExpr(body, top.Cur), b.literalModeArg(body, top.LiteralMode)))

	ifNode := b.attach(body, &ast.IfStmt{Statement: ast.Statement{Kind: ast.StmtIf}})
	ifStmt := ifNode.Payload.(*ast.IfStmt)
	ifStmt.Cond = b.runtimeCall(ifNode, "spicy_rt::lookAheadAmbiguous", b.nameExpr(ifNode, p.Symbol+".token"))
	ifStmt.Then = b.newBlock(ifNode)
	b.appendExprStmt(ifStmt.Then, b.runtimeCall(ifStmt.Then, "spicy_rt::parseError", b.stringLit(ifStmt.Then, "ambiguous look-ahead token match")))

	for _, alt := range p.RHS {
		b.emitBody(body, state, alt)
	}
}

// emitSynchronizedField makes the field a sync point (spec 4.12, "Trial
// mode and synchronization"): the field's body and post-field step are
// emitted in Search literal mode inside a TryStmt whose catch records the
// failure on `__error`, searches for the sync token, and calls the field
// symbol's `__on_%synced` hook. The TryStmt wraps only this field, so
// failures raised by earlier fields are not caught here, the remaining
// fields are not re-entered in trial mode, and the unit's
// `%synchronize-at`/`%synchronize-after` properties are not read.
func (b *Builder) emitSynchronizedField(body *ast.Node, state *Stack, p *Production, fd *ast.FieldDecl) {
	top := state.Top()
	top.LiteralMode = ModeSearch

	tryNode := b.attach(body, &ast.TryStmt{Statement: ast.Statement{Kind: ast.StmtTry}})
	tryStmt := tryNode.Payload.(*ast.TryStmt)
	tryStmt.Body = b.newBlock(tryNode)
	b.emitBody(tryStmt.Body, state, p)
	b.emitPostField(tryStmt.Body, state, p, fd)

	recoverBody := b.newBlock(tryNode)
	b.appendExprStmt(recoverBody, b.runtimeCall(recoverBody, "spicy_rt::recordError", b.nameExpr(recoverBody, top.Self), b.nameExpr(recoverBody, top.Error)))
	b.appendExprStmt(recoverBody, b.runtimeCall(recoverBody, "spicy_rt::searchSyncToken", b.nameExpr(recoverBody, top.Cur)))
	b.appendExprStmt(recoverBody, b.runtimeCall(recoverBody, p.Symbol+"::__on_%synced", b.nameExpr(recoverBody, top.Self)))

	tryStmt.Catches = []ast.CatchClause{{Body: recoverBody}}
}

// emitTryField implements `&try`'s backtracking frame: on a parse
// failure inside the field, the cursor rewinds to the frame's entry
// point rather than propagating (spec 4.12, "Field parsing contract",
// step 1). A field that also carries `&synchronize` gets only this frame,
// since emitField checks `try` first; and a sync point's TryStmt wraps
// only its own field, so a `&try` frame is never nested inside a sync
// frame.
func (b *Builder) emitTryField(body *ast.Node, state *Stack, p *Production, fd *ast.FieldDecl) {
	tryNode := b.attach(body, &ast.TryStmt{Statement: ast.Statement{Kind: ast.StmtTry}})
	tryStmt := tryNode.Payload.(*ast.TryStmt)
	tryStmt.Body = b.newBlock(tryNode)
	b.emitBody(tryStmt.Body, state, p)
	b.emitPostField(tryStmt.Body, state, p, fd)

	recoverBody := b.newBlock(tryNode)
	b.appendExprStmt(recoverBody, b.runtimeCall(recoverBody, "spicy_rt::rewind", b.nameExpr(recoverBody, state.Top().Cur)))
	tryStmt.Catches = []ast.CatchClause{{Body: recoverBody}}
}

// emitPostField implements spec 4.12's post-field step: verifying
// `&size` consumption, applying `&convert`, running `__on_<name>` hooks,
// and (conceptually; the concrete condition is unit-specific and wired
// by lowering pass 2's rewrite table) `&requires` validation.
func (b *Builder) emitPostField(body *ast.Node, state *Stack, p *Production, fd *ast.FieldDecl) {
	frame := state.Top()

	if frame.NCur != "" {
		b.appendExprStmt(body, b.runtimeCall(body, "spicy_rt::checkSizeConsumed", b.nameExpr(body, frame.Cur), b.nameExpr(body, frame.NCur)))
	}

	if convert, ok := fd.Attributes["convert"]; ok && convert != nil {
		b.appendLocal(body, p.Symbol, b.runtimeCall(body, "spicy_rt::convert", b.nameExpr(body, p.Symbol)))
	}

	if !fd.Internal && fd.Name != "" {
		b.appendExprStmt(body, b.runtimeCall(body, p.Symbol+"::__on_"+fd.Name, b.nameExpr(body, frame.Self)))
	}
}

// --- AST-construction helpers; every node is created via b.ctx.NewNode
// with an already-attached parent, so Children() enumerates them. -------

func (b *Builder) newParam(parent *ast.Node, name string, t *types.QualifiedType) *ast.Node {
	return b.ctx.NewNode(parent, &ast.ParameterDecl{
		Declaration: ast.Declaration{Kind: ast.DeclParameter, Name: name},
		Type:        t,
		Operand:     ast.OperandIn,
	})
}

func (b *Builder) newBlock(parent *ast.Node) *ast.Node {
	return b.ctx.NewNode(parent, &ast.BlockStmt{Statement: ast.Statement{Kind: ast.StmtBlock}})
}

// attach creates a new child of block and also appends it to the
// block's own Body slice, keeping the two views in sync.
func (b *Builder) attach(block *ast.Node, payload ast.Payload) *ast.Node {
	n := b.ctx.NewNode(block, payload)

	if bs, ok := block.Payload.(*ast.BlockStmt); ok {
		bs.Body = append(bs.Body, n)
	}

	return n
}

func (b *Builder) appendExprStmt(block *ast.Node, expr *ast.Node) {
	b.attach(block, &ast.ExpressionStmt{Statement: ast.Statement{Kind: ast.StmtExpression}, Expr: expr})
}

func (b *Builder) appendLocal(block *ast.Node, name string, init *ast.Node) {
	declNode := b.ctx.NewNode(block, &ast.LocalVariableDecl{
		Declaration: ast.Declaration{Kind: ast.DeclLocalVariable, Name: name},
	})
	declNode.Payload.(*ast.LocalVariableDecl).Init = init

	if bs, ok := block.Payload.(*ast.BlockStmt); ok {
		stmtNode := b.ctx.NewNode(block, &ast.DeclarationStmt{Statement: ast.Statement{Kind: ast.StmtDeclaration}, Decl: declNode})
		bs.Body = append(bs.Body, stmtNode)
	}
}

// runtimeCall builds a call to a runtime or generated function as a new
// child of parent (spec 4.11's construct table is entirely calls of this
// shape: `unit.find(...)` becomes `call runtime unit_find`, etc.).
func (b *Builder) runtimeCall(parent *ast.Node, name string, args ...*ast.Node) *ast.Node {
	n := b.ctx.NewNode(parent, &ast.BuiltInFunctionExpr{
		Expression: ast.Expression{Kind: ast.ExprBuiltInFunction},
		Name:       name,
	})
	n.Payload.(*ast.BuiltInFunctionExpr).Args = args

	return n
}

func (b *Builder) nameExpr(parent *ast.Node, path string) *ast.Node {
	return b.ctx.NewNode(parent, &ast.NameExpr{Expression: ast.Expression{Kind: ast.ExprName}, Path: path})
}

func (b *Builder) stringLit(parent *ast.Node, s string) *ast.Node {
	ctorExprNode := b.ctx.NewNode(parent, &ast.CtorExpr{Expression: ast.Expression{Kind: ast.ExprCtor}})
	ctorNode := b.ctx.NewNode(ctorExprNode, &ast.StringCtor{Ctor: ast.Ctor{Kind: ast.CtorString}, Value: s})
	ctorExprNode.Payload.(*ast.CtorExpr).Ctor = ctorNode

	return ctorExprNode
}

func (b *Builder) literalModeArg(parent *ast.Node, m LiteralMode) *ast.Node {
	ctorExprNode := b.ctx.NewNode(parent, &ast.CtorExpr{Expression: ast.Expression{Kind: ast.ExprCtor}})
	ctorNode := b.ctx.NewNode(ctorExprNode, &ast.IntegerCtor{Ctor: ast.Ctor{Kind: ast.CtorInteger}, Value: int64(m)})
	ctorExprNode.Payload.(*ast.CtorExpr).Ctor = ctorNode

	return ctorExprNode
}

func fieldTypeName(p *Production) string {
	if p.Field == nil {
		return p.Symbol
	}

	fd := p.Field.Payload.(*ast.FieldDecl)
	if n, ok := fd.Type.Underlying().(*types.UnitType); ok && n.Decl != nil {
		return n.Decl.FullyQualifiedID()
	}

	return p.Symbol
}

func paramTypes(params []*ast.Node) []*types.QualifiedType {
	result := make([]*types.QualifiedType, len(params))
	for i, p := range params {
		result[i] = p.Payload.(*ast.ParameterDecl).Type
	}

	return result
}
