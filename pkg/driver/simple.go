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
	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
)

// SimpleDriver is a minimal, in-process Driver suitable for a CLI front
// end or a test harness: it holds the pipeline Options verbatim and
// tracks units in a plain map (spec 6's registerUnit/lookupUnit).
type SimpleDriver struct {
	opts  Options
	units map[ast.UID]*ast.Node
}

// NewSimpleDriver constructs a driver with the given options.
func NewSimpleDriver(opts Options) *SimpleDriver {
	return &SimpleDriver{opts: opts, units: map[ast.UID]*ast.Node{}}
}

func (d *SimpleDriver) Options() Options { return d.opts }

func (d *SimpleDriver) HookCompilationFinished(p Plugin) {
	if d.opts.Debug {
		log.WithField("stream", "compiler").Debugf("compilation finished for plugin %s", p.Name())
	}
}

func (d *SimpleDriver) RegisterUnit(unit *ast.Node) {
	decl, ok := unit.Payload.(*ast.TypeDecl)
	if !ok {
		return
	}

	d.units[ast.UID{ID: decl.FullyQualifiedID()}] = unit
}

func (d *SimpleDriver) LookupUnit(uid ast.UID) (*ast.Node, bool) {
	n, ok := d.units[uid]
	return n, ok
}
