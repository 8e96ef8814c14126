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
package operator

import (
	log "github.com/sirupsen/logrus"

	"github.com/hiltilang/hilti-core/pkg/ast"
)

// entry is a registered operator plus its pending/live lifecycle state.
type entry struct {
	sig     Signature
	pending bool
	// materialize attempts to finish populating sig against the live
	// AST (e.g. resolving a per-field struct member-call type); it may
	// be nil for signatures that need no such step.
	materialize func() bool
}

// Registry is the process-wide (but context-safe) table of operator
// descriptors (C3).  An operator is submitted as pending; initPending
// periodically attempts to materialize each pending entry.
type Registry struct {
	byName     map[string][]*entry
	byKind     map[ast.OperatorKind][]*entry
	byMethodID map[string][]*entry
	byBuiltin  map[string][]*entry
	all        []*entry

	log *log.Entry
}

// NewRegistry constructs an empty operator registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string][]*entry),
		byKind:     make(map[ast.OperatorKind][]*entry),
		byMethodID: make(map[string][]*entry),
		byBuiltin:  make(map[string][]*entry),
		log:        log.WithField("stream", "operator"),
	}
}

// Register submits sig as a pending operator.  materialize, if non-nil,
// is retried by InitPending until it returns true.
func (r *Registry) Register(sig Signature, materialize func() bool) {
	e := &entry{sig: sig, pending: materialize != nil, materialize: materialize}
	r.all = append(r.all, e)
	r.index(e)

	if e.pending {
		r.log.Debugf("registered pending operator %s/%s", sig.Namespace, sig.Name)
	}
}

func (r *Registry) index(e *entry) {
	r.byName[e.sig.Name] = append(r.byName[e.sig.Name], e)
	r.byKind[e.sig.Kind] = append(r.byKind[e.sig.Kind], e)

	if e.sig.MethodID != "" {
		r.byMethodID[e.sig.MethodID] = append(r.byMethodID[e.sig.MethodID], e)
	}

	if e.sig.BuiltinID != "" {
		r.byBuiltin[e.sig.BuiltinID] = append(r.byBuiltin[e.sig.BuiltinID], e)
	}
}

// InitPending attempts to materialize every still-pending operator
// against the live AST; called once per resolver round.  Returns true if
// any entry transitioned from pending to live this round.
func (r *Registry) InitPending() bool {
	changed := false

	for _, e := range r.all {
		if !e.pending {
			continue
		}

		if e.materialize == nil || e.materialize() {
			e.pending = false
			changed = true
			r.log.Debugf("materialized operator %s/%s", e.sig.Namespace, e.sig.Name)
		}
	}

	return changed
}

// AnyPending reports whether any built-in operator remains pending; after
// the resolver's fixed point this must be false (spec 4.3, "Guarantee").
func (r *Registry) AnyPending() bool {
	for _, e := range r.all {
		if e.pending {
			return true
		}
	}

	return false
}

// ByName returns every live signature registered under the given name.
func (r *Registry) ByName(name string) []Signature {
	return liveSignatures(r.byName[name])
}

// ByKind returns every live signature of the given kind (used for
// overload resolution of built-in operators).
func (r *Registry) ByKind(kind ast.OperatorKind) []Signature {
	return liveSignatures(r.byKind[kind])
}

// ByMethodID returns every live signature registered under the given
// MemberCall method identifier.
func (r *Registry) ByMethodID(id string) []Signature {
	return liveSignatures(r.byMethodID[id])
}

// ByBuiltinID returns every live signature registered under the given
// built-in function identifier (a Call whose op0 is a member expression).
func (r *Registry) ByBuiltinID(id string) []Signature {
	return liveSignatures(r.byBuiltin[id])
}

func liveSignatures(entries []*entry) []Signature {
	sigs := make([]Signature, 0, len(entries))

	for _, e := range entries {
		if !e.pending {
			sigs = append(sigs, e.sig)
		}
	}

	return sigs
}
