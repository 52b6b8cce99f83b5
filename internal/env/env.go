package env

import (
	"sync"
	"sync/atomic"

	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

// envState is one immutable generation of the environment. A Declare
// builds a new state and swaps the pointer; existing snapshots keep
// observing the generation they were taken at.
type envState struct {
	index     map[term.Name]*Declaration
	instances map[term.Name][]*Instance
	order     []*Declaration
	gen       uint64
}

// Environment is the global declaration store. It grows monotonically
// for the duration of a checking session, is never mutated in place,
// and never shrinks. Declare is the only mutator and is atomic: no
// reader ever observes a partially inserted declaration.
type Environment struct {
	state atomic.Pointer[envState]
	mu    sync.Mutex // serializes writers only
}

// New creates an empty environment.
func New() *Environment {
	e := &Environment{}
	e.state.Store(&envState{
		index:     map[term.Name]*Declaration{},
		instances: map[term.Name][]*Instance{},
	})

	return e
}

// Snapshot is a read-only view of the environment as of one generation.
// Snapshots are safe for concurrent use and impose no locking on other
// readers or on writers.
type Snapshot struct {
	state *envState
}

// Snapshot returns the current read-only view.
func (e *Environment) Snapshot() *Snapshot {
	return &Snapshot{state: e.state.Load()}
}

// Generation returns the snapshot's generation counter: the number of
// declarations committed when it was taken.
func (s *Snapshot) Generation() uint64 {
	return s.state.gen
}

// Lookup returns the declaration for name.
func (s *Snapshot) Lookup(name term.Name) (*Declaration, error) {
	if d, ok := s.state.index[name]; ok {
		return d, nil
	}

	return nil, &kerr.UnknownConstant{Name: name}
}

// Contains reports whether name is declared.
func (s *Snapshot) Contains(name term.Name) bool {
	_, ok := s.state.index[name]

	return ok
}

// Declarations returns the declarations in insertion order. The shared
// backing array must not be mutated.
func (s *Snapshot) Declarations() []*Declaration {
	return s.state.order
}

// Instances returns the candidate instances registered for the given
// class, ordered by descending priority then declaration order.
func (s *Snapshot) Instances(class term.Name) []*Instance {
	return s.state.instances[class]
}

// Extend returns a derived snapshot with the given declarations
// visible, without committing anything to the environment. Used to
// check declaration groups (an inductive's constructors mention the
// type former) before their atomic commit.
func (s *Snapshot) Extend(decls ...*Declaration) *Snapshot {
	st := s.state
	for _, d := range decls {
		st = st.withDeclaration(d, nil)
	}

	return &Snapshot{state: st}
}

// Declare appends a declaration. It fails with NameClash if the name is
// already present; on failure the environment is observably unchanged.
// Validity of the declaration's type is the caller's responsibility
// (the kernel session checks it against the pre-insertion snapshot).
func (e *Environment) Declare(d *Declaration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.state.Load()
	if _, ok := cur.index[d.Name]; ok {
		return &kerr.NameClash{Name: d.Name}
	}

	e.state.Store(cur.withDeclaration(d, nil))

	return nil
}

// DeclareBatch appends several declarations as one atomic step: either
// all become visible or none do. Used for inductive types, whose type
// former, constructors, and recursor must never be observed piecemeal.
func (e *Environment) DeclareBatch(decls []*Declaration, instances []*Instance) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.state.Load()

	seen := map[term.Name]struct{}{}
	for _, d := range decls {
		if _, ok := cur.index[d.Name]; ok {
			return &kerr.NameClash{Name: d.Name}
		}

		if _, ok := seen[d.Name]; ok {
			return &kerr.NameClash{Name: d.Name}
		}

		seen[d.Name] = struct{}{}
	}

	next := cur

	for _, d := range decls {
		next = next.withDeclaration(d, nil)
	}

	for _, inst := range instances {
		next = next.withInstance(inst)
	}

	e.state.Store(next)

	return nil
}

// DeclareInstance registers an existing declaration as an instance of
// the given class.
func (e *Environment) DeclareInstance(inst *Instance) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.state.Load()
	if _, ok := cur.index[inst.Decl.Name]; !ok {
		return &kerr.UnknownConstant{Name: inst.Decl.Name}
	}

	e.state.Store(cur.withInstance(inst))

	return nil
}

func (st *envState) withDeclaration(d *Declaration, instances []*Instance) *envState {
	index := make(map[term.Name]*Declaration, len(st.index)+1)
	for k, v := range st.index {
		index[k] = v
	}

	index[d.Name] = d

	order := make([]*Declaration, len(st.order), len(st.order)+1)
	copy(order, st.order)
	order = append(order, d)

	next := &envState{
		index:     index,
		instances: st.instances,
		order:     order,
		gen:       st.gen + 1,
	}

	for _, inst := range instances {
		next = next.withInstance(inst)
	}

	return next
}

func (st *envState) withInstance(inst *Instance) *envState {
	instances := make(map[term.Name][]*Instance, len(st.instances)+1)
	for k, v := range st.instances {
		instances[k] = v
	}

	list := instances[inst.Class]
	merged := make([]*Instance, 0, len(list)+1)

	inserted := false
	for _, existing := range list {
		if !inserted && inst.Priority > existing.Priority {
			merged = append(merged, inst)
			inserted = true
		}

		merged = append(merged, existing)
	}

	if !inserted {
		merged = append(merged, inst)
	}

	instances[inst.Class] = merged

	return &envState{
		index:     st.index,
		instances: instances,
		order:     st.order,
		gen:       st.gen,
	}
}
