// Package instances implements typeclass instance resolution: a
// bounded depth-first search over the environment's registered
// instances and the local context, driven as an explicit tagged-state
// search stack so cycles and runaway depth are detected instead of
// recursed into.
package instances

import (
	"go.uber.org/zap"

	"github.com/arbor-lang/arbor/internal/check"
	"github.com/arbor-lang/arbor/internal/env"
	kerr "github.com/arbor-lang/arbor/internal/errors"
	"github.com/arbor-lang/arbor/internal/term"
)

// Config bounds one resolution run.
type Config struct {
	// MaxDepth caps the subgoal nesting depth.
	MaxDepth int
	// MaxIterations caps state machine steps across all candidates.
	MaxIterations int
	// Limits are handed to the per-attempt checkers.
	Limits check.Limits
}

// DefaultConfig returns the bounds used when the caller does not
// configure any.
func DefaultConfig() Config {
	return Config{MaxDepth: 32, MaxIterations: 10000}
}

// Resolver synthesizes instance terms against one environment
// snapshot. Safe for sequential reuse; not safe for concurrent use.
type Resolver struct {
	snap *env.Snapshot
	log  *zap.Logger
	cfg  Config
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger attaches a structured logger for search tracing.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// New creates a resolver over the snapshot.
func New(snap *env.Snapshot, cfg Config, opts ...Option) *Resolver {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}

	r := &Resolver{snap: snap, cfg: cfg, log: zap.NewNop()}

	for _, o := range opts {
		o(r)
	}

	return r
}

// stateKind tags the search frame states.
type stateKind int

const (
	stateStart stateKind = iota
	stateTryCandidate
	stateSuccess
	stateExhausted
)

// candidate is one way to discharge a goal: a local hypothesis or a
// declared instance.
type candidate struct {
	head   *term.Expr // local, or instance constant with levels applied
	typ    *term.Expr
	origin string
}

// subgoal is an instance-implicit argument of a candidate, to be
// resolved depth-first.
type subgoal struct {
	meta *term.Expr
	typ  *term.Expr
}

// attempt is the in-progress application of one candidate.
type attempt struct {
	chk      *check.Checker
	instTerm *term.Expr
	subgoals []subgoal
	nextSub  int
}

// frame is one goal on the search stack.
type frame struct {
	goal       *term.Expr
	key        string
	cur        *attempt
	result     *term.Expr
	candidates []candidate
	idx        int
	state      stateKind
}

// Resolve synthesizes a term of the goal type. Candidates are tried in
// priority order: local hypotheses first (innermost first), then
// declared instances by priority, ties in declaration order; the first
// success wins. The search terminates within the configured bounds,
// returning InstanceNotFound, InstanceCycle, or
// InstanceSearchDepthExceeded on the failure paths.
func (r *Resolver) Resolve(goal *term.Expr, locals []*term.Expr) (*term.Expr, error) {
	class, ok := env.ClassOf(goal)
	if !ok {
		return nil, &kerr.InstanceNotFound{Goal: goal}
	}

	r.log.Debug("instance search started",
		zap.String("goal", goal.String()),
		zap.String("class", class.String()))

	stack := []*frame{{goal: goal, key: goal.String()}}
	onPath := map[string]int{goal.String(): 1}
	iterations := 0

	for len(stack) > 0 {
		iterations++
		if iterations > r.cfg.MaxIterations {
			return nil, &kerr.InstanceSearchDepthExceeded{Goal: goal, Depth: r.cfg.MaxDepth}
		}

		f := stack[len(stack)-1]

		switch f.state {
		case stateStart:
			if len(stack) > r.cfg.MaxDepth {
				return nil, &kerr.InstanceSearchDepthExceeded{Goal: goal, Depth: r.cfg.MaxDepth}
			}

			f.candidates = r.gatherCandidates(f.goal, locals)
			f.state = stateTryCandidate
		case stateTryCandidate:
			child, err := r.stepCandidate(f)
			if err != nil {
				return nil, err
			}

			if child != nil {
				if onPath[child.key] > 0 {
					return nil, &kerr.InstanceCycle{Goal: child.goal}
				}

				onPath[child.key]++
				stack = append(stack, child)
			}
		case stateSuccess:
			onPath[f.key]--
			stack = stack[:len(stack)-1]

			if len(stack) == 0 {
				r.log.Debug("instance search succeeded",
					zap.String("goal", goal.String()),
					zap.String("instance", f.result.String()),
					zap.Int("iterations", iterations))

				return f.result, nil
			}

			parent := stack[len(stack)-1]
			if err := parent.consumeSubgoal(f.result); err != nil {
				// Assignment rejected; drop the candidate and move on.
				parent.cur = nil
			}
		case stateExhausted:
			onPath[f.key]--
			stack = stack[:len(stack)-1]

			if len(stack) == 0 {
				r.log.Debug("instance search exhausted",
					zap.String("goal", goal.String()),
					zap.Int("iterations", iterations))

				return nil, &kerr.InstanceNotFound{Goal: goal}
			}

			// The child goal had no solution; the parent abandons its
			// current candidate and backtracks to the next one.
			parent := stack[len(stack)-1]
			parent.cur = nil
		}
	}

	return nil, &kerr.InstanceNotFound{Goal: goal}
}

// stepCandidate advances one goal frame by one step, returning a child
// frame when a subgoal must be resolved first.
func (r *Resolver) stepCandidate(f *frame) (*frame, error) {
	for f.cur == nil {
		if f.idx >= len(f.candidates) {
			f.state = stateExhausted

			return nil, nil
		}

		cand := f.candidates[f.idx]
		f.idx++

		at, ok, err := r.openCandidate(cand, f.goal)
		if err != nil {
			return nil, err
		}

		if ok {
			r.log.Debug("candidate matched",
				zap.String("goal", f.goal.String()),
				zap.String("candidate", cand.origin))

			f.cur = at
		}
	}

	at := f.cur

	if at.nextSub >= len(at.subgoals) {
		result := at.chk.Metas().Instantiate(at.instTerm)
		if result.HasMeta() {
			// Unification left holes the search cannot fill.
			f.cur = nil

			return nil, nil
		}

		f.result = result
		f.state = stateSuccess

		return nil, nil
	}

	sub := at.subgoals[at.nextSub]
	subType := at.chk.Metas().Instantiate(sub.typ)

	return &frame{goal: subType, key: subType.String()}, nil
}

// consumeSubgoal records a resolved subgoal on the current attempt.
func (f *frame) consumeSubgoal(result *term.Expr) error {
	at := f.cur
	sub := at.subgoals[at.nextSub]

	if err := at.chk.Metas().Assign(sub.meta.Meta().ID, result); err != nil {
		return err
	}

	at.nextSub++

	return nil
}

// openCandidate instantiates the candidate's telescope with fresh
// metavariables and unifies its result type with the goal. The
// instance-implicit metas become subgoals.
func (r *Resolver) openCandidate(cand candidate, goal *term.Expr) (*attempt, bool, error) {
	chk := check.New(r.snap, check.WithLimits(r.cfg.Limits))

	instTerm := cand.head
	typ := cand.typ

	var subgoals []subgoal

	for typ.Kind == term.ExprPi {
		b := typ.Binder()
		m := term.NewMeta()
		instTerm = term.NewApp(instTerm, m)

		if b.Info == term.BinderInstImplicit {
			subgoals = append(subgoals, subgoal{meta: m, typ: b.Type})
		}

		typ = b.Body.Instantiate(m)
	}

	matched, err := chk.IsDefEq(typ, goal)
	if err != nil {
		// A cyclic assignment or exhausted budget during matching just
		// disqualifies the candidate.
		return nil, false, nil
	}

	if !matched {
		return nil, false, nil
	}

	return &attempt{chk: chk, instTerm: instTerm, subgoals: subgoals}, true, nil
}

// gatherCandidates lists the candidates for a goal in search order.
func (r *Resolver) gatherCandidates(goal *term.Expr, locals []*term.Expr) []candidate {
	class, ok := env.ClassOf(goal)
	if !ok {
		return nil
	}

	var out []candidate

	// Local hypotheses first, innermost binding first.
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.Kind != term.ExprLocal || l.Local().Type == nil {
			continue
		}

		if lc, ok := env.ClassOf(l.Local().Type); ok && lc == class {
			out = append(out, candidate{
				head:   l,
				typ:    l.Local().Type,
				origin: "local " + l.Local().Name.String(),
			})
		}
	}

	goalLevels := headLevels(goal)

	for _, inst := range r.snap.Instances(class) {
		decl := inst.Decl

		levels := make([]*term.Level, len(decl.LevelParams))
		switch {
		case len(decl.LevelParams) == 0:
		case len(decl.LevelParams) == len(goalLevels):
			copy(levels, goalLevels)
		default:
			// No way to pick universe arguments for this candidate.
			continue
		}

		out = append(out, candidate{
			head:   term.NewConst(decl.Name, levels...),
			typ:    decl.Type.InstantiateLevelParams(decl.LevelParams, levels),
			origin: "instance " + decl.Name.String(),
		})
	}

	return out
}

// headLevels returns the universe arguments of the goal's head
// constant.
func headLevels(goal *term.Expr) []*term.Level {
	for goal.Kind == term.ExprPi {
		goal = goal.Binder().Body
	}

	head := goal.GetAppFn()
	if head.Kind != term.ExprConst {
		return nil
	}

	return head.Const().Levels
}
