// SPDX-License-Identifier: MPL-2.0

package stub

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

// SpecOriginBlocked marks a stand-in's spec so that introspection callers
// branch on "present but blocked" instead of raising on a nil spec.
const SpecOriginBlocked = "blocked"

type (
	// Spec is the loadability descriptor reported for a blocked module.
	// It is always non-nil for active names; callers that compare the spec
	// against nil take their "module absent" branch without erroring.
	Spec struct {
		// Name is the fully qualified module name.
		Name string
		// Origin is always SpecOriginBlocked for stand-ins.
		Origin string
	}

	// FakeModule is a stand-in for a named blocked module. The zero value is
	// not useful; obtain instances from a Registry.
	FakeModule struct {
		name string
	}

	// Passthrough is the wrapper returned when a FakeModule is called with
	// anything other than a single callable. It hands back its first argument
	// so call sites that thread a value through keep working.
	Passthrough func(args ...any) any

	// Registry tracks the blocked-name set and hands out stand-ins.
	// Install is idempotent; names are never removed for the process lifetime.
	Registry struct {
		mu      sync.Mutex
		blocked map[string]string // qualified name -> reason
	}
)

// DefaultBlocked is the closed table of modules that must never load for real
// in a restricted runtime, with the operator-facing reason.
var DefaultBlocked = map[string]string{
	"triton":       "requires Python.h (standard PyTorch operations are used instead)",
	"bitsandbytes": "requires compilation (quantization disabled)",
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{blocked: make(map[string]string)}
}

// DefaultRegistry creates a Registry pre-loaded with DefaultBlocked.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, reason := range DefaultBlocked {
		r.InstallWithReason(name, reason)
	}
	return r
}

// Install registers the given names as blocked. Re-registering an already
// blocked name is a no-op; an existing reason is preserved.
func (r *Registry) Install(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := r.blocked[name]; !ok {
			r.blocked[name] = "blocked in restricted runtime"
		}
	}
}

// InstallWithReason registers a single name with an explicit reason.
// Idempotent; a later call never overwrites an earlier reason.
func (r *Registry) InstallWithReason(name, reason string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blocked[name]; !ok {
		r.blocked[name] = reason
	}
}

// IsActive reports whether name is blocked, either exactly or as a submodule
// of a blocked name (bitsandbytes.nn is active when bitsandbytes is).
func (r *Registry) IsActive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for blocked := range r.blocked {
		if name == blocked || strings.HasPrefix(name, blocked+".") {
			return true
		}
	}
	return false
}

// Lookup returns the stand-in for an active name, or nil when the name is not
// blocked. Submodule names yield stand-ins of their own qualified name.
func (r *Registry) Lookup(name string) *FakeModule {
	if !r.IsActive(name) {
		return nil
	}
	return &FakeModule{name: name}
}

// Names returns the blocked top-level names in sorted order, so the launcher
// generator emits a deterministic interceptor block.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.blocked))
	for name := range r.blocked {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reason returns the registered reason for an exactly blocked name.
func (r *Registry) Reason(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocked[name]
}

// Name returns the stand-in's qualified module name.
func (m *FakeModule) Name() string {
	return m.name
}

// Spec returns a non-nil loadability descriptor with Origin "blocked".
func (m *FakeModule) Spec() *Spec {
	return &Spec{Name: m.name, Origin: SpecOriginBlocked}
}

// Attr resolves a nested attribute chain. Every step returns another
// FakeModule, so chains of arbitrary depth resolve instead of erroring.
// A stand-in returning nil here would break any caller that compares
// mod.a.b against a sentinel other than nil.
func (m *FakeModule) Attr(names ...string) *FakeModule {
	cur := m
	for _, name := range names {
		cur = &FakeModule{name: cur.name + "." + name}
	}
	return cur
}

// Truthy reports the stand-in's boolean value, which is always false so that
// "if optional_module: use_it()" guards skip the optional path.
func (m *FakeModule) Truthy() bool {
	return false
}

// Call makes the stand-in usable as a decorator: a single callable argument
// is returned unchanged; any other invocation yields a Passthrough wrapper.
func (m *FakeModule) Call(args ...any) any {
	if len(args) == 1 && args[0] != nil {
		if reflect.TypeOf(args[0]).Kind() == reflect.Func {
			return args[0]
		}
	}
	return Passthrough(func(inner ...any) any {
		if len(inner) > 0 {
			return inner[0]
		}
		return nil
	})
}
