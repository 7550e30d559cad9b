package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the gmscope indexer
type ErrorType string

const (
	// Build errors
	ErrorTypeBuild ErrorType = "build"
	ErrorTypeScan  ErrorType = "scan"

	// Analysis errors
	ErrorTypeManifest ErrorType = "manifest"
	ErrorTypeSource   ErrorType = "source"

	// Cache errors
	ErrorTypeCache ErrorType = "cache"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// ErrDisposed is returned by coordinator operations after Dispose has been
// called. Callers must construct a fresh coordinator.
var ErrDisposed = errors.New("build coordinator disposed")

// BuildError represents an error during an index build
type BuildError struct {
	Type        ErrorType
	ProjectRoot string
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewBuildError creates a new build error with context
func NewBuildError(op string, err error) *BuildError {
	return &BuildError{
		Type:       ErrorTypeBuild,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithRoot adds the project root to the error
func (e *BuildError) WithRoot(root string) *BuildError {
	e.ProjectRoot = root
	return e
}

// WithFile adds file information to the error
func (e *BuildError) WithFile(path string) *BuildError {
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *BuildError) WithRecoverable(recoverable bool) *BuildError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	if e.ProjectRoot != "" {
		return fmt.Sprintf("%s %s failed in %s: %v", e.Type, e.Operation, e.ProjectRoot, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *BuildError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *BuildError) IsRecoverable() bool {
	return e.Recoverable
}

// ManifestError represents a resource manifest that could not be analyzed.
// Malformed manifests are skipped and counted, never fatal to a build.
type ManifestError struct {
	Type       ErrorType
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewManifestError creates a new manifest error
func NewManifestError(path string, err error) *ManifestError {
	return &ManifestError{
		Type:       ErrorTypeManifest,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest analysis failed for %s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ManifestError) Unwrap() error {
	return e.Underlying
}

// SourceError represents a source file parse or analysis error
type SourceError struct {
	Type       ErrorType
	Path       string
	Offset     int
	Underlying error
	Timestamp  time.Time
}

// NewSourceError creates a new source error
func NewSourceError(path string, offset int, err error) *SourceError {
	return &SourceError{
		Type:       ErrorTypeSource,
		Path:       path,
		Offset:     offset,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("source analysis failed for %s at offset %d: %v", e.Path, e.Offset, e.Underlying)
	}
	return fmt.Sprintf("source analysis failed for %s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SourceError) Unwrap() error {
	return e.Underlying
}

// CacheError represents a cache store operation error
type CacheError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewCacheError creates a new cache error
func NewCacheError(op, path string, err error) *CacheError {
	return &CacheError{
		Type:       ErrorTypeCache,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *CacheError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
