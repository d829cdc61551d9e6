package env

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/httpbridge/packages/diag"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// UnresolvedError lists the placeholders Expand could not fill
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return "unresolved placeholders: " + strings.Join(e.Names, ", ")
}

// Resolver fills placeholders. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	funcs     map[string]Func
	lookupEnv func(string) (string, bool)
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithVariables seeds the resolver with vars.
func WithVariables(vars map[string]string) Option {
	return func(r *Resolver) {
		maps.Copy(r.variables, vars)
	}
}

// WithLookupEnv replaces os.LookupEnv for {{$NAME}} placeholders.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = fn
	}
}

// WithFunc registers or replaces a built-in function.
func WithFunc(name string, fn Func) Option {
	return func(r *Resolver) {
		r.funcs[name] = fn
	}
}

// WithLogger sets the logger unresolved placeholders are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a resolver with the default built-in functions.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		variables: make(map[string]string),
		funcs:     defaultFuncs(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = diag.Named("env")
	}
	return r
}

// Set defines one variable.
func (r *Resolver) Set(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetAll defines every variable in vars. Existing names are overwritten.
func (r *Resolver) SetAll(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps.Copy(r.variables, vars)
}

// LoadFiles reads .env files in order. Later files override earlier ones.
func (r *Resolver) LoadFiles(paths ...string) error {
	for _, p := range paths {
		vars, err := LoadDotEnv(p)
		if err != nil {
			return err
		}
		r.SetAll(vars)
	}
	return nil
}

// Get returns a variable.
func (r *Resolver) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// ParseAssignment splits "name=value". The value may be empty.
func ParseAssignment(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid variable %q: expected name=value", s)
	}
	return name, value, nil
}

// Resolve fills every placeholder it can and leaves the rest untouched.
func (r *Resolver) Resolve(input string) string {
	out, _ := r.resolve(input)
	return out
}

// Expand is Resolve that fails when any placeholder is left.
func (r *Resolver) Expand(input string) (string, error) {
	out, missing := r.resolve(input)
	if len(missing) > 0 {
		return out, &UnresolvedError{Names: missing}
	}
	return out, nil
}

func (r *Resolver) resolve(input string) (string, []string) {
	var missing []string
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := r.lookup(expr); ok {
			return v
		}
		r.logger.Debug("unresolved placeholder", zap.String("expr", expr))
		missing = append(missing, expr)
		return match
	})
	return out, missing
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		return r.lookupEnv(name)
	}
	if strings.Contains(expr, "(") {
		return call(r.funcs, expr)
	}
	return r.Get(expr)
}
