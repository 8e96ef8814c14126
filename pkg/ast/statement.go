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

// StmtKind tags which concrete statement payload a node carries.
type StmtKind uint8

const (
	StmtBlock StmtKind = iota
	StmtIf
	StmtFor
	StmtWhile
	StmtSwitch
	StmtReturn
	StmtAssert
	StmtTry
	StmtDeclaration
	StmtExpression
	StmtConfirm
	StmtReject
	StmtStop
	StmtPrint
)

// Statement is the shared payload for every statement-shaped node.
type Statement struct {
	Kind StmtKind
}

func (*Statement) payloadMarker() {}

// BlockStmt is an ordered sequence of statements sharing a LocalScope.
type BlockStmt struct {
	Statement
	Body []*Node
}

// IfStmt is `if (cond) then [else else_]`; Cond is coerced to bool under
// contextual conversion (spec 4.7).
type IfStmt struct {
	Statement
	Cond *Node
	Then *Node
	Else *Node
}

// ForStmt iterates Local over Sequence's dereferenced iterator type
// (spec 4.7, "For-loop local").
type ForStmt struct {
	Statement
	Local    *Node // LocalVariableDecl
	Sequence *Node
	Body     *Node
}

// WhileStmt is `while (cond) body [else else_]`.
type WhileStmt struct {
	Statement
	Cond *Node
	Body *Node
	Else *Node
}

// SwitchCase is one `case <exprs>: body` or the default arm.
type SwitchCase struct {
	Exprs   []*Node
	Body    *Node
	Default bool
}

// SwitchStmt preprocesses each case literal into `<condition-id> ==
// case-literal` so ordinary overload resolution applies (spec 4.7).
type SwitchStmt struct {
	Statement
	Cond  *Node
	Cases []SwitchCase
}

// ReturnStmt returns an optional value from the enclosing function.
type ReturnStmt struct {
	Statement
	Value *Node
}

// AssertStmt asserts Cond (coerced to bool) with an optional message.
type AssertStmt struct {
	Statement
	Cond    *Node
	Message *Node
}

// CatchClause is one `catch (param?) body` arm of a TryStmt.
type CatchClause struct {
	Param *Node // optional ParameterDecl, module-unqualified FQID
	Body  *Node
}

// TryStmt is `try body catch...`.
type TryStmt struct {
	Statement
	Body    *Node
	Catches []CatchClause
}

// DeclarationStmt wraps a local declaration appearing in statement position.
type DeclarationStmt struct {
	Statement
	Decl *Node
}

// ExpressionStmt wraps a bare expression in statement position.
type ExpressionStmt struct {
	Statement
	Expr *Node
}

// ConfirmStmt is Spicy `confirm`: calls the runtime with `*self`.
type ConfirmStmt struct{ Statement }

// RejectStmt is Spicy `reject`.
type RejectStmt struct{ Statement }

// StopStmt is Spicy `stop`: lowered to `__stop := true; return`.
type StopStmt struct{ Statement }

// PrintStmt is Spicy `print a, b, ...`.
type PrintStmt struct {
	Statement
	Args []*Node
}
