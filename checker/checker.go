// Package checker implements the pluggable per-kind constraint checks.
// Each checker is a pure function over (entity snapshot, constraint
// definition, reference-data lookup); the registry degrades unknown kinds
// to an inapplicable verdict so new upstream constraint kinds never break
// the pipeline.
package checker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360studio/claimwatch/constraint"
	"github.com/c360studio/claimwatch/model"
)

// Verdict is the outcome of one constraint check against one entity
// snapshot. Missing and exempt cases are inapplicable, not satisfied, so
// reporting can distinguish "not checked" from "checked and passed".
type Verdict string

const (
	VerdictSatisfied    Verdict = "satisfied"
	VerdictViolated     Verdict = "violated"
	VerdictInapplicable Verdict = "inapplicable"
	VerdictError        Verdict = "error"
)

// Lookup provides the reference data a checker may need beyond the entity
// snapshot itself. Implementations are expected to cache; results must
// reflect the current state of the graph.
type Lookup interface {
	// Entity returns the current snapshot of another entity, following
	// redirects. Returns an error satisfying IsNotFound for deleted
	// entities.
	Entity(ctx context.Context, entityID string) (*model.RevisionWrapper, error)

	// IsInstanceOf reports whether the entity reaches one of the classes
	// via the relation properties (class-hierarchy membership).
	IsInstanceOf(ctx context.Context, entityID string, relations, classes []string) (bool, error)

	// AnySubclassOf reports whether any of the base classes is (or is a
	// transitive subclass of) one of the target classes.
	AnySubclassOf(ctx context.Context, bases, classes []string) (bool, error)
}

// NotFoundError is returned by Lookup.Entity for deleted or never-created
// entities.
type NotFoundError struct {
	EntityID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity %s not found", e.EntityID)
}

// Checker implements one constraint kind's check.
type Checker interface {
	Kind() constraint.Kind
	Check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition, lookup Lookup) (Verdict, error)
}

// Registry maps constraint kinds to checkers. Lookup of an unknown kind
// yields an inapplicable verdict with a logged warning, never an error.
type Registry struct {
	mu     sync.RWMutex
	byKind map[constraint.Kind]Checker
	logger *slog.Logger
	warned map[constraint.Kind]bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byKind: make(map[constraint.Kind]Checker),
		logger: logger,
		warned: make(map[constraint.Kind]bool),
	}
}

// Register adds a checker. Registering the same kind twice is an error.
func (r *Registry) Register(c Checker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKind[c.Kind()]; ok {
		return fmt.Errorf("checker already registered for kind %s", c.Kind())
	}
	r.byKind[c.Kind()] = c
	return nil
}

// Check runs the checker for the definition's kind against the snapshot.
func (r *Registry) Check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition, lookup Lookup) (Verdict, error) {
	r.mu.RLock()
	c, ok := r.byKind[def.Kind]
	r.mu.RUnlock()
	if !ok {
		r.warnUnknown(def.Kind)
		return VerdictInapplicable, nil
	}
	return c.Check(ctx, snap, def, lookup)
}

// warnUnknown logs once per unknown kind to keep a busy stream readable.
func (r *Registry) warnUnknown(kind constraint.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.warned[kind] {
		return
	}
	r.warned[kind] = true
	r.logger.Warn("No checker registered for constraint kind, treating as inapplicable",
		"kind", kind)
}

// DefaultRegistry returns a registry with every builtin checker
// registered.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	for _, c := range builtins() {
		// Builtins are distinct by construction.
		_ = r.Register(c)
	}
	return r
}
