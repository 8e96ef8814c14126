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
package driver

import (
	"fmt"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/resolve"
)

// HILTIPlugin is the base-language plugin: it always runs first (Order 0)
// and contributes no AST transform of its own, only the structural
// validator checks spec 4.9 assigns to the base language.
type HILTIPlugin struct {
	cxxIncludes  []string
	libraryPaths []string
}

// NewHILTIPlugin constructs the HILTI plugin with an optional extra set
// of downstream C++ includes and module search directories.
func NewHILTIPlugin(cxxIncludes, libraryPaths []string) *HILTIPlugin {
	return &HILTIPlugin{cxxIncludes: cxxIncludes, libraryPaths: libraryPaths}
}

func (p *HILTIPlugin) Name() string      { return "hilti" }
func (p *HILTIPlugin) Extension() string { return ".hlt" }
func (p *HILTIPlugin) Order() int        { return 0 }

func (p *HILTIPlugin) CxxIncludes() []string { return p.cxxIncludes }

func (p *HILTIPlugin) LibraryPaths(_ *ast.Context) []string { return p.libraryPaths }

// Transform: HILTI has no AST rewrite pass of its own (Spicy's lowering
// is the only plugin transform in this pipeline).
func (p *HILTIPlugin) Transform() func(ctx *ast.Context, root *ast.Node) bool { return nil }

func (p *HILTIPlugin) ValidatePre() []resolve.ValidatorHook {
	return []resolve.ValidatorHook{validateNoDuplicateParameterNames}
}

func (p *HILTIPlugin) ValidatePost() []resolve.ValidatorHook {
	return []resolve.ValidatorHook{validateFunctionReturnResolved, validateNoUnresolvedOperators}
}

// validateNoDuplicateParameterNames catches a parameter list declaring
// the same name twice, which the scope builder would otherwise silently
// drop: the second binding fails, the failure is only logged, and the
// first binding stays.
func validateNoDuplicateParameterNames(n *ast.Node) {
	fn, ok := n.Payload.(*ast.FunctionDecl)
	if !ok {
		return
	}

	seen := map[string]bool{}

	for _, param := range fn.Parameters {
		pd, ok := param.Payload.(*ast.ParameterDecl)
		if !ok {
			continue
		}

		if seen[pd.Name] {
			param.AddError(fmt.Sprintf("duplicate parameter name %q", pd.Name), ast.Normal)
			continue
		}

		seen[pd.Name] = true
	}
}

// validateFunctionReturnResolved flags a function whose declared result
// type never resolved, which would otherwise surface only as a confusing
// downstream "auto leaked" error far from its source.
func validateFunctionReturnResolved(n *ast.Node) {
	fn, ok := n.Payload.(*ast.FunctionDecl)
	if !ok || fn.Type == nil {
		return
	}

	if fn.Type.Result == nil {
		return
	}

	if !fn.Type.Result.Underlying().IsResolved() {
		n.AddError(fmt.Sprintf("function %q's return type never resolved", fn.Name), ast.High)
	}
}

// validateNoUnresolvedOperators is the last line of defense against a
// resolver fixed point that converged without actually resolving every
// operator use (e.g. one genuinely missing from the registry).
func validateNoUnresolvedOperators(n *ast.Node) {
	if _, ok := n.Payload.(*ast.UnresolvedOperatorExpr); ok {
		n.AddError("operator use could not be resolved to any known overload", ast.Normal)
	}
}
