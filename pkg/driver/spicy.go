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
	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/resolve"
	"github.com/hiltilang/hilti-core/pkg/spicy"
)

// SpicyPlugin runs after HILTI (Order 1) and contributes the unit-to-
// struct lowering pass (C11, which itself drives the grammar builder and
// parser-function generator of C12 internally) as its AST transform.
type SpicyPlugin struct {
	cxxIncludes  []string
	libraryPaths []string
}

// NewSpicyPlugin constructs the Spicy plugin.
func NewSpicyPlugin(cxxIncludes, libraryPaths []string) *SpicyPlugin {
	return &SpicyPlugin{cxxIncludes: cxxIncludes, libraryPaths: libraryPaths}
}

func (p *SpicyPlugin) Name() string      { return "spicy" }
func (p *SpicyPlugin) Extension() string { return ".spicy" }
func (p *SpicyPlugin) Order() int        { return 1 }

func (p *SpicyPlugin) CxxIncludes() []string { return p.cxxIncludes }

func (p *SpicyPlugin) LibraryPaths(_ *ast.Context) []string { return p.libraryPaths }

// Transform runs one round of the unit lowering pass (spicy.Run); the
// driver's outer loop re-invokes it until it reports no change.
func (p *SpicyPlugin) Transform() func(ctx *ast.Context, root *ast.Node) bool {
	return func(ctx *ast.Context, root *ast.Node) bool {
		return spicy.NewLowering(ctx).Run(root)
	}
}

func (p *SpicyPlugin) ValidatePre() []resolve.ValidatorHook {
	return []resolve.ValidatorHook{validateHookFieldReference}
}

func (p *SpicyPlugin) ValidatePost() []resolve.ValidatorHook {
	return nil
}

// validateHookFieldReference flags a field-scoped hook (`on field_name`)
// whose enclosing unit never resolved, which the lowering pass otherwise
// silently skips rather than rewriting (spec 4.4, "hooks bind against
// the enclosing unit's field list").
func validateHookFieldReference(n *ast.Node) {
	hook, ok := n.Payload.(*ast.UnitHookDecl)
	if !ok || hook.Field == "" {
		return
	}

	if hook.Unit == nil {
		n.AddError("hook field reference has no enclosing unit", ast.Low)
	}
}
