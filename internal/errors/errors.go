// Package errors provides centralized error handling for the audio engine and
// editing packages. It wraps errors with a component, a category, and free-form
// context so control-path failures are diagnosable without being propagated
// through the real-time audio callback.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory groups errors for logging and metrics.
type ErrorCategory string

// CategorizedError lets an error report its own category.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryValidation  ErrorCategory = "validation"
	CategoryTopology    ErrorCategory = "graph-topology"
	CategoryState       ErrorCategory = "state"
	CategoryNotFound    ErrorCategory = "not-found"
	CategoryConflict    ErrorCategory = "conflict"
	CategoryProcessing  ErrorCategory = "processing"
	CategoryResource    ErrorCategory = "resource"
	CategoryFileIO      ErrorCategory = "file-io"
	CategorySerde       ErrorCategory = "serialization"
	CategoryGeneric     ErrorCategory = "generic"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component, category, and context.
type EnhancedError struct {
	Err       error
	component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
	mu        sync.RWMutex
	detected  bool
}

// Error implements the error interface.
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap supports errors.Is/As against the wrapped error.
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is compares categories when the target is also an EnhancedError.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetComponent returns the component name, detecting it lazily if needed.
func (ee *EnhancedError) GetComponent() string {
	ee.mu.RLock()
	if ee.detected || ee.component != "" {
		c := ee.component
		ee.mu.RUnlock()
		return c
	}
	ee.mu.RUnlock()

	ee.mu.Lock()
	defer ee.mu.Unlock()
	if ee.component == "" && !ee.detected {
		ee.component = detectComponent()
		ee.detected = true
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
	}
	return ee.component
}

// GetCategory returns the error category as a string.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error's context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	cp := make(map[string]any, len(ee.Context))
	maps.Copy(cp, ee.Context)
	return cp
}

// GetTimestamp returns when the error was built.
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// ErrorBuilder provides a fluent interface for constructing EnhancedErrors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts a builder around an existing error (nil is allowed for sentinels).
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts a builder around a formatted error.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the owning component (auto-detected from the call stack otherwise).
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context attaches a key/value pair of diagnostic context.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build finalizes the EnhancedError, auto-detecting component/category when unset.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.err == nil {
		eb.err = stderrors.New("error")
	}

	component := eb.component
	detected := component != ""
	if !detected {
		component = detectComponent()
		detected = true
		if component == "" {
			component = ComponentUnknown
		}
	}

	category := eb.category
	if category == "" {
		category = detectCategory(eb.err, component)
	}

	return &EnhancedError{
		Err:       eb.err,
		component: component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
		detected:  detected,
	}
}

var (
	componentRegistry = make(map[string]string)
	registryMutex     sync.RWMutex
)

// RegisterComponent associates a package-path substring with a component name.
func RegisterComponent(packagePattern, componentName string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	componentRegistry[packagePattern] = componentName
}

func init() {
	RegisterComponent("internal/graph", "graph")
	RegisterComponent("internal/engine", "engine")
	RegisterComponent("internal/sound", "player")
	RegisterComponent("internal/dsp", "dsp")
	RegisterComponent("internal/editing", "editing")
	RegisterComponent("internal/format", "format")
}

func detectComponent() string {
	for _, depth := range []int{4, 5, 6, 7} {
		if c := quickComponentLookup(depth); c != "" && c != ComponentUnknown {
			return c
		}
	}
	return detectComponentFull()
}

func quickComponentLookup(depth int) string {
	pc, _, _, ok := runtime.Caller(depth)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	funcName := fn.Name()
	if strings.Contains(funcName, "soundflow-go/soundflow/internal/errors") {
		return ""
	}
	return lookupComponent(funcName)
}

func detectComponentFull() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	if n == len(pcs) {
		pcs = make([]uintptr, 32)
		n = runtime.Callers(2, pcs)
	}
	for i := range n {
		fn := runtime.FuncForPC(pcs[i])
		if fn == nil {
			continue
		}
		funcName := fn.Name()
		if strings.Contains(funcName, "soundflow-go/soundflow/internal/errors") {
			continue
		}
		if c := lookupComponent(funcName); c != ComponentUnknown {
			return c
		}
	}
	return ComponentUnknown
}

func lookupComponent(funcName string) string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	for pattern, component := range componentRegistry {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}

	parts := strings.Split(funcName, "/")
	if len(parts) > 0 {
		lastPart := parts[len(parts)-1]
		if dotIndex := strings.Index(lastPart, "."); dotIndex > 0 {
			return lastPart[:dotIndex]
		}
	}
	return ComponentUnknown
}

func detectCategory(err error, component string) ErrorCategory {
	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}

	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cycle") || strings.Contains(msg, "self-connect"):
		return CategoryTopology
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "must be") || strings.Contains(msg, "negative"):
		return CategoryValidation
	case strings.Contains(msg, "not found"):
		return CategoryNotFound
	case strings.Contains(msg, "already"):
		return CategoryConflict
	case strings.Contains(msg, "file") || strings.Contains(msg, "open") || strings.Contains(msg, "read"):
		return CategoryFileIO
	}
	return CategoryGeneric
}

// Wrap is an alias for New, documenting intent at call sites.
func Wrap(err error) *ErrorBuilder {
	return New(err)
}

// ValidationError is a convenience constructor for parameter validation failures.
func ValidationError(message string) *EnhancedError {
	return New(stderrors.New(message)).Category(CategoryValidation).Build()
}

// Standard-library passthroughs so this package composes with errors.Is/As chains.
func Is(err, target error) bool { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error { return stderrors.Unwrap(err) }
func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether err is an EnhancedError tagged with category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}

// IsNotFound reports whether err is tagged CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
