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

// Package driver implements the driver loop (C13): it orchestrates the
// scope builder, resolver, validator, and per-plugin transform over a
// registered set of language plugins, in the fixed order spec 4.13
// prescribes (HILTI first, then Spicy), followed by an optional global
// optimization pass.
package driver

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
	"github.com/hiltilang/hilti-core/pkg/operator"
	"github.com/hiltilang/hilti-core/pkg/optimize"
	"github.com/hiltilang/hilti-core/pkg/resolve"
	"github.com/hiltilang/hilti-core/pkg/scope"
)

var compilerLog = log.WithField("stream", "compiler")

// Plugin is the callback surface a language contributes to the pipeline
// (spec 6, "Plugin callback surface"): HILTI and Spicy are both
// instances of this interface, registered with the driver in declaration
// order (HILTI first).
type Plugin interface {
	// Name identifies the plugin in logs and HookCompilationFinished calls.
	Name() string
	// Extension is the file extension used to route imports and parsing.
	Extension() string
	// Order is the integer the driver sorts plugins by before running
	// the pipeline stages (spec 6: "order: integer ordering for driver
	// pass sequence").
	Order() int
	// CxxIncludes is an opaque list forwarded to the downstream emitter;
	// this core only carries it, never interprets it.
	CxxIncludes() []string
	// LibraryPaths returns extra module search directories this plugin
	// contributes.
	LibraryPaths(ctx *ast.Context) []string
	// ValidatePre/ValidatePost register the plugin's pre_resolve/
	// post_resolve validator hooks (spec 4.9).
	ValidatePre() []resolve.ValidatorHook
	ValidatePost() []resolve.ValidatorHook
	// Transform returns the plugin's AST-transform callback (spec
	// 4.13's "transform(plugin)"), or nil if the plugin has none (HILTI
	// has none; Spicy's is the lowering pass, C11).  Returns the
	// "modified" flag per invocation; the driver re-invokes it to a
	// fixed point.
	Transform() func(ctx *ast.Context, root *ast.Node) bool
}

// Options mirrors spec 6's "what the core exposes" Driver.options()
// fields.
type Options struct {
	Debug               bool
	EnableProfiling     bool
	SkipValidation      bool
	SkipDependencies    bool
	GlobalOptimizations bool
	LibraryPaths        []string
	Features            map[string]bool
}

// Driver is the callback surface the core consumes from its embedder
// (spec 6, "Driver callback surface").
type Driver interface {
	Options() Options
	HookCompilationFinished(p Plugin)
	RegisterUnit(unit *ast.Node)
	LookupUnit(uid ast.UID) (*ast.Node, bool)
}

// ProcessError wraps the collected top-priority diagnostic bucket from a
// failed pipeline stage.
type ProcessError struct {
	Stage  string
	Errors []resolve.CollectedError
}

func (e *ProcessError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: resolution failed", e.Stage)
	}

	return fmt.Sprintf("%s: %s (+%d more)", e.Stage, e.Errors[0].Message, len(e.Errors)-1)
}

// ProcessAST runs the driver loop of spec 4.13 over ctx's full node tree.
// It is idempotent after success (spec 4.1): a context already marked
// resolved returns immediately.
func ProcessAST(ctx *ast.Context, drv Driver, plugins []Plugin) error {
	if ctx.Resolved() {
		return nil
	}

	ordered := append([]Plugin{}, plugins...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order() < ordered[j].Order() })

	opts := drv.Options()

	searchDirs := append([]string{}, opts.LibraryPaths...)
	for _, p := range ordered {
		searchDirs = append(searchDirs, p.LibraryPaths(ctx)...)
	}

	if len(ordered) > 0 {
		if _, err := ctx.ImportModule("hilti", "", ordered[0].Extension(), searchDirs); err != nil {
			// The "hilti" runtime module always-available guarantee (spec
			// 4.13) assumes a real standard-library file on disk; this
			// core's scope excludes the filesystem/build-cache layer
			// (spec 1), so a missing stdlib file is logged, not fatal -
			// in-memory test contexts that never touch disk rely on this.
			compilerLog.Debugf("implicit import of \"hilti\" unavailable: %v", err)
		}
	}

	registry := operator.NewRegistry()
	operator.RegisterHILTIBuiltins(registry)

	for _, p := range ordered {
		if err := runPlugin(ctx, drv, registry, p, opts); err != nil {
			return err
		}
	}

	if opts.GlobalOptimizations {
		flags := optimize.Flags{
			FeatureGating:   true,
			FunctionPruning: true,
			ConstantFolding: true,
			MemberPruning:   true,
			TypePruning:     true,
			Features:        opts.Features,
		}

		opt := optimize.NewOptimizer(ctx, flags)
		for opt.Run(ctx.Root()) {
		}

		if hilti := findByName(ordered, "hilti"); hilti != nil && !opts.SkipValidation {
			v := resolve.NewValidator()
			for _, h := range hilti.ValidatePost() {
				v.AddPostResolve(h)
			}

			v.RunPost(ctx.Root())

			if errs := resolve.CollectErrors(ctx.Root()); len(errs) > 0 {
				return &ProcessError{Stage: "post-optimize validate", Errors: errs}
			}
		}
	}

	ctx.MarkResolved()
	compilerLog.Debug("processAST completed")

	return nil
}

func findByName(plugins []Plugin, name string) Plugin {
	for _, p := range plugins {
		if p.Name() == name {
			return p
		}
	}

	return nil
}

func runPlugin(ctx *ast.Context, drv Driver, registry *operator.Registry, p Plugin, opts Options) error {
	compilerLog.Debugf("running plugin %s", p.Name())

	validator := resolve.NewValidator()
	for _, h := range p.ValidatePre() {
		validator.AddPreResolve(h)
	}

	for _, h := range p.ValidatePost() {
		validator.AddPostResolve(h)
	}

	if !opts.SkipValidation {
		validator.RunPre(ctx.Root())

		if errs := resolve.CollectErrors(ctx.Root()); len(errs) > 0 {
			return &ProcessError{Stage: fmt.Sprintf("%s validate_pre", p.Name()), Errors: errs}
		}
	}

	for _, uid := range ctx.Modules() {
		module, ok := ctx.GetModule(uid)
		if !ok {
			continue
		}

		moduleScope := scope.NewModuleScope(uid.ID)
		r := resolve.NewResolver(ctx, registry, moduleScope)

		if err := r.Resolve(module, true); err != nil {
			return fmt.Errorf("%s resolve %s: %w", p.Name(), uid, err)
		}
	}

	if !opts.SkipValidation {
		validator.RunPost(ctx.Root())

		if errs := resolve.CollectErrors(ctx.Root()); len(errs) > 0 {
			return &ProcessError{Stage: fmt.Sprintf("%s validate_post", p.Name()), Errors: errs}
		}
	}

	drv.HookCompilationFinished(p)

	if transform := p.Transform(); transform != nil {
		for transform(ctx, ctx.Root()) {
		}
	}

	return nil
}
