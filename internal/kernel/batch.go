package kernel

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arbor-lang/arbor/internal/env"
	"github.com/arbor-lang/arbor/internal/term"
)

// BatchEntry is one declaration of a batch: either a plain declaration
// or an inductive spec. Instance marks a declaration to be registered
// as a typeclass instance once committed.
type BatchEntry struct {
	Decl             *env.Declaration
	Inductive        *env.InductiveSpec
	Instance         bool
	InstancePriority int
}

// Name returns the entry's primary name.
func (e *BatchEntry) Name() term.Name {
	if e.Inductive != nil {
		return e.Inductive.Name
	}

	return e.Decl.Name
}

// provides lists every name the entry commits.
func (e *BatchEntry) provides() []term.Name {
	if e.Inductive == nil {
		return []term.Name{e.Decl.Name}
	}

	names := make([]term.Name, 0, len(e.Inductive.Constructors)+2)
	names = append(names, e.Inductive.Name)

	for _, c := range e.Inductive.Constructors {
		names = append(names, c.Name)
	}

	names = append(names, e.Inductive.Name.Child("rec"))

	return names
}

// dependencies lists every constant the entry's types and values
// reference.
func (e *BatchEntry) dependencies() []term.Name {
	seen := map[term.Name]struct{}{}

	var deps []term.Name

	collect := func(x *term.Expr) {
		if x == nil {
			return
		}

		x.FoldConsts(func(n term.Name) {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				deps = append(deps, n)
			}
		})
	}

	if e.Inductive != nil {
		collect(e.Inductive.Type)

		for _, c := range e.Inductive.Constructors {
			collect(c.Type)
		}
	} else {
		collect(e.Decl.Type)
		collect(e.Decl.Value)
	}

	return deps
}

// CheckBatch validates and commits a batch of declarations. Entries
// with no dependency edge between them are checked in parallel, each
// worker on its own read-only snapshot; no entry starts checking until
// everything it references has been committed. Commits are sequential
// in batch order, so diagnostics and the resulting environment are
// deterministic. The first failure aborts the batch; waves committed
// before the failure remain, the failing wave does not.
func (s *Session) CheckBatch(ctx context.Context, entries []*BatchEntry) error {
	// Names provided later in the batch, for dependency scheduling.
	providedBy := map[term.Name]*BatchEntry{}
	for _, e := range entries {
		for _, n := range e.provides() {
			providedBy[n] = e
		}
	}

	committed := map[*BatchEntry]bool{}
	pending := append([]*BatchEntry{}, entries...)

	workers := s.limits.Workers
	if workers <= 0 {
		workers = 1
	}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap := s.Snapshot()

		var wave, rest []*BatchEntry

		for _, e := range pending {
			if s.entryReady(e, snap, providedBy, committed) {
				wave = append(wave, e)
			} else {
				rest = append(rest, e)
			}
		}

		if len(wave) == 0 {
			return fmt.Errorf("declaration batch has a dependency cycle among %d remaining entries (first: %s)",
				len(pending), pending[0].Name())
		}

		s.log.Debug("checking batch wave",
			zap.Int("entries", len(wave)),
			zap.Int("workers", workers),
			zap.Uint64("generation", snap.Generation()))

		validated := make([]*env.Elaborated, len(wave))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for i, e := range wave {
			i, e := i, e
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				elab, err := s.validateEntry(snap, e)
				if err != nil {
					return err
				}

				validated[i] = elab

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		for i, e := range wave {
			if err := s.commitEntry(e, validated[i]); err != nil {
				return err
			}

			committed[e] = true
		}

		pending = rest
	}

	return nil
}

// entryReady reports whether every dependency of the entry is visible:
// already committed to the environment, or provided by a batch entry
// that has been committed.
func (s *Session) entryReady(e *BatchEntry, snap *env.Snapshot, providedBy map[term.Name]*BatchEntry, committed map[*BatchEntry]bool) bool {
	for _, dep := range e.dependencies() {
		if snap.Contains(dep) {
			continue
		}

		if provider, ok := providedBy[dep]; ok {
			if provider == e {
				// Self references (constructors mention their former)
				// are resolved inside the entry's own validation.
				continue
			}

			if !committed[provider] {
				return false
			}

			continue
		}
		// Unknown constant: let validation produce the precise error.
	}

	return true
}

// validateEntry type-checks an entry against a snapshot without
// committing. For inductives the elaboration result is returned so the
// commit does not redo the work.
func (s *Session) validateEntry(snap *env.Snapshot, e *BatchEntry) (*env.Elaborated, error) {
	if e.Inductive == nil {
		return nil, s.validate(snap, e.Decl)
	}

	return s.validateInductive(snap, e.Inductive)
}

func (s *Session) commitEntry(e *BatchEntry, elab *env.Elaborated) error {
	if e.Inductive != nil {
		if err := s.environment.DeclareBatch(elab.Decls(), nil); err != nil {
			return err
		}

		s.log.Debug("inductive committed",
			zap.String("name", e.Inductive.Name.String()),
			zap.Int("constructors", len(elab.Constructors)))

		return nil
	}

	if err := s.environment.Declare(e.Decl); err != nil {
		return err
	}

	s.log.Debug("declaration committed",
		zap.String("name", e.Decl.Name.String()),
		zap.String("kind", e.Decl.Kind.String()))

	if e.Instance {
		return s.DeclareInstance(e.Decl.Name, e.InstancePriority)
	}

	return nil
}
