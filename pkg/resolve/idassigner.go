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

// Package resolve implements the resolver (C7), the ID assigner (C8), and
// the validator (C9): the fixed-point loop at the heart of the pipeline.
package resolve

import (
	"fmt"
	"hash/fnv"

	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
)

var idLog = log.WithField("stream", "id-assigner")

// IDAssigner implements C8's two traversals: Compute (set missing FQ and
// canonical IDs) and Enforce (assert every declaration has one).
type IDAssigner struct {
	moduleHash map[*ast.Node]string
	anonStruct int
}

// NewIDAssigner constructs an ID assigner.
func NewIDAssigner() *IDAssigner {
	return &IDAssigner{moduleHash: make(map[*ast.Node]string)}
}

// Compute walks module in post order, assigning fully-qualified and
// canonical IDs to every declaration that lacks one (spec 4.8).
func (a *IDAssigner) Compute(module *ast.Node) bool {
	mod, ok := module.Payload.(*ast.ModuleDecl)
	if !ok {
		return false
	}

	hash := a.moduleUIDHash(module, mod)
	changed := false

	a.walk(module, mod.ModuleID, hash, false, &changed)

	return changed
}

func (a *IDAssigner) moduleUIDHash(module *ast.Node, mod *ast.ModuleDecl) string {
	if h, ok := a.moduleHash[module]; ok {
		return h
	}

	sum := fnv.New32a()
	_, _ = sum.Write([]byte(mod.ModuleID))
	h := fmt.Sprintf("%04x", sum.Sum32()&0xffff)
	a.moduleHash[module] = h

	return h
}

func (a *IDAssigner) walk(n *ast.Node, path string, hash string, inCatch bool, changed *bool) {
	if n == nil {
		return
	}

	nextPath := path
	nextInCatch := inCatch

	if decl, ok := declarationOf(n.Payload); ok {
		if param, ok := n.Payload.(*ast.ParameterDecl); ok && param.IsCatch {
			nextInCatch = true
		}

		fq, canonical := a.idsFor(decl, path, hash, nextInCatch)

		if decl.FullyQualifiedID() == "" {
			decl.SetFullyQualifiedID(fq)
			decl.SetCanonicalID(canonical)
			*changed = true
			idLog.Debugf("assigned %s (canonical %s)", fq, canonical)
		}

		if decl.Name != "" && !inCatch {
			nextPath = fq
		}
	}

	for _, child := range n.Children() {
		a.walk(child, nextPath, hash, nextInCatch, changed)
	}
}

func (a *IDAssigner) idsFor(decl *ast.Declaration, path, hash string, inCatch bool) (fq, canonical string) {
	name := decl.Name
	if name == "" {
		a.anonStruct++
		name = fmt.Sprintf("anon_struct_%x", a.anonStruct)
	}

	if inCatch {
		// Catch-clause parameters are bare locals, not module-qualified
		// (spec 4.8, "Compute").
		return name, name
	}

	if path == "" {
		fq = name
	} else {
		fq = path + "." + name
	}

	canonical = fq + "#" + hash

	return fq, canonical
}

// Enforce walks module once after resolving completes and asserts every
// declaration has a canonical ID; absence is an internal error (spec 4.8).
func (a *IDAssigner) Enforce(n *ast.Node) {
	if n == nil {
		return
	}

	if decl, ok := declarationOf(n.Payload); ok {
		if decl.CanonicalID() == "" {
			panic(fmt.Sprintf("internal error: declaration %q has no canonical ID after resolution", decl.Name))
		}
	}

	for _, child := range n.Children() {
		a.Enforce(child)
	}
}

// declarationOf extracts the embedded ast.Declaration header from any
// concrete declaration payload.
func declarationOf(p ast.Payload) (*ast.Declaration, bool) {
	switch v := p.(type) {
	case *ast.ModuleDecl:
		return &v.Declaration, true
	case *ast.ImportedModuleDecl:
		return &v.Declaration, true
	case *ast.TypeDecl:
		return &v.Declaration, true
	case *ast.ConstantDecl:
		return &v.Declaration, true
	case *ast.GlobalVariableDecl:
		return &v.Declaration, true
	case *ast.LocalVariableDecl:
		return &v.Declaration, true
	case *ast.ParameterDecl:
		return &v.Declaration, true
	case *ast.FunctionDecl:
		return &v.Declaration, true
	case *ast.FieldDecl:
		return &v.Declaration, true
	case *ast.ExpressionDecl:
		return &v.Declaration, true
	case *ast.UnitHookDecl:
		return &v.Declaration, true
	default:
		return nil, false
	}
}
