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
	"sort"

	"github.com/hiltilang/hilti-core/pkg/ast"
)

// ValidatorHook is one read-only AST-walking check registered for either
// the pre_resolve or post_resolve phase (spec 4.9).
type ValidatorHook func(n *ast.Node)

// Validator runs the registered pre/post hooks and then collects every
// node's errors into the single highest-priority bucket.
type Validator struct {
	pre  []ValidatorHook
	post []ValidatorHook
}

// NewValidator constructs an empty validator.
func NewValidator() *Validator { return &Validator{} }

// AddPreResolve registers a pre_resolve hook.
func (v *Validator) AddPreResolve(h ValidatorHook) { v.pre = append(v.pre, h) }

// AddPostResolve registers a post_resolve hook.
func (v *Validator) AddPostResolve(h ValidatorHook) { v.post = append(v.post, h) }

// RunPre walks root once per registered pre_resolve hook.
func (v *Validator) RunPre(root *ast.Node) {
	for _, h := range v.pre {
		walkAll(root, h)
	}
}

// RunPost walks root once per registered post_resolve hook.
func (v *Validator) RunPost(root *ast.Node) {
	for _, h := range v.post {
		walkAll(root, h)
	}
}

func walkAll(n *ast.Node, h ValidatorHook) {
	if n == nil {
		return
	}

	h(n)

	for _, child := range n.Children() {
		walkAll(child, h)
	}
}

// CollectedError is one reported diagnostic together with the node it was
// recorded against; it carries no source location of its own.
type CollectedError struct {
	Node     *ast.Node
	Message  string
	Priority ast.Priority
}

// CollectErrors walks root, extracts every recorded error with its node,
// and returns only the highest-priority non-empty bucket (spec 4.9,
// spec 7). It attaches no source location: the location a consumer can
// report is the error node's own, and ancestors are not searched.
func CollectErrors(root *ast.Node) []CollectedError {
	buckets := map[ast.Priority][]CollectedError{}

	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}

		for _, e := range n.Errors() {
			buckets[e.Priority] = append(buckets[e.Priority], CollectedError{
				Node: n, Message: e.Message, Priority: e.Priority,
			})
		}

		for _, child := range n.Children() {
			walk(child)
		}
	}

	walk(root)

	order := []ast.Priority{ast.High, ast.Normal, ast.Low}
	for _, p := range order {
		if len(buckets[p]) > 0 {
			sort.SliceStable(buckets[p], func(i, j int) bool {
				return buckets[p][i].Message < buckets[p][j].Message
			})

			return buckets[p]
		}
	}

	return nil
}
