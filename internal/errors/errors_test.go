package errors

import (
	"errors"
	"testing"
	"time"
)

func TestBuildError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := NewBuildError("test operation", underlying).
		WithFile("scripts/scr_a/scr_a.gml").
		WithRecoverable(true)

	if err.Type != ErrorTypeBuild {
		t.Errorf("Expected Type to be ErrorTypeBuild, got %v", err.Type)
	}

	if err.FilePath != "scripts/scr_a/scr_a.gml" {
		t.Errorf("Expected FilePath to be 'scripts/scr_a/scr_a.gml', got %s", err.FilePath)
	}

	if err.Operation != "test operation" {
		t.Errorf("Expected Operation to be 'test operation', got %s", err.Operation)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	if !err.IsRecoverable() {
		t.Errorf("Expected error to be marked as recoverable")
	}

	expectedMsg := "build test operation failed for scripts/scr_a/scr_a.gml: underlying error"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestBuildErrorWithRoot(t *testing.T) {
	underlying := errors.New("scan failed")
	err := NewBuildError("scan", underlying).WithRoot("/projects/game")

	expectedMsg := "build scan failed in /projects/game: scan failed"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestManifestError(t *testing.T) {
	underlying := errors.New("unexpected end of JSON input")
	err := NewManifestError("objects/obj_player/obj_player.yy", underlying)

	if err.Type != ErrorTypeManifest {
		t.Errorf("Expected Type to be ErrorTypeManifest, got %v", err.Type)
	}

	if err.Path != "objects/obj_player/obj_player.yy" {
		t.Errorf("Expected Path to be 'objects/obj_player/obj_player.yy', got %s", err.Path)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "manifest analysis failed for objects/obj_player/obj_player.yy: unexpected end of JSON input"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestSourceError(t *testing.T) {
	underlying := errors.New("unterminated string")
	err := NewSourceError("scripts/scr_a/scr_a.gml", 42, underlying)

	if err.Type != ErrorTypeSource {
		t.Errorf("Expected Type to be ErrorTypeSource, got %v", err.Type)
	}

	if err.Offset != 42 {
		t.Errorf("Expected Offset to be 42, got %d", err.Offset)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "source analysis failed for scripts/scr_a/scr_a.gml at offset 42: unterminated string"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestCacheError(t *testing.T) {
	underlying := errors.New("disk full")
	err := NewCacheError("save", ".gmscope-cache/project-index-cache.json", underlying)

	if err.Type != ErrorTypeCache {
		t.Errorf("Expected Type to be ErrorTypeCache, got %v", err.Type)
	}

	if err.Operation != "save" {
		t.Errorf("Expected Operation to be 'save', got %s", err.Operation)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "cache save failed for .gmscope-cache/project-index-cache.json: disk full"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("invalid value")
	err := NewConfigError("field_name", "invalid_value", underlying)

	if err.Field != "field_name" {
		t.Errorf("Expected Field to be 'field_name', got %s", err.Field)
	}

	if err.Value != "invalid_value" {
		t.Errorf("Expected Value to be 'invalid_value', got %s", err.Value)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := `config error for field field_name (value invalid_value): invalid value`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestMultiError(t *testing.T) {
	// Test with multiple errors
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")
	err3 := errors.New("error 3")

	multiErr := NewMultiError([]error{err1, err2, err3})

	if len(multiErr.Errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(multiErr.Errors))
	}

	// Use a simpler check - just verify it contains the count and errors
	errMsg := multiErr.Error()
	if errMsg != "no errors" && errMsg != "error 1" {
		// For multiple errors, just check that it starts with the count
		if len(errMsg) < 10 || errMsg[:10] != "3 errors: " {
			t.Errorf("Expected message to start with '3 errors: ', got %q", errMsg)
		}
	}

	// Test with single error
	singleErr := NewMultiError([]error{err1})
	if singleErr.Error() != "error 1" {
		t.Errorf("Expected 'error 1', got %q", singleErr.Error())
	}

	// Test with no errors
	emptyErr := NewMultiError([]error{})
	if emptyErr.Error() != "no errors" {
		t.Errorf("Expected 'no errors', got %q", emptyErr.Error())
	}

	// Test with nil errors (should be filtered)
	nilFiltered := NewMultiError([]error{err1, nil, err2, nil})
	if len(nilFiltered.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(nilFiltered.Errors))
	}

	// Test Unwrap
	unwrapped := multiErr.Unwrap()
	if len(unwrapped) != 3 {
		t.Errorf("Expected 3 unwrapped errors, got %d", len(unwrapped))
	}
}

func TestErrDisposed(t *testing.T) {
	wrapped := NewBuildError("ensure ready", ErrDisposed)
	if !errors.Is(wrapped, ErrDisposed) {
		t.Errorf("Expected wrapped error to match ErrDisposed")
	}
}

func TestTimestamp(t *testing.T) {
	// Verify that errors have timestamps
	err := NewBuildError("test", errors.New("test"))
	if err.Timestamp.IsZero() {
		t.Errorf("Expected non-zero timestamp")
	}

	// Verify timestamp is recent (within last second)
	now := time.Now()
	if err.Timestamp.After(now) || now.Sub(err.Timestamp) > time.Second {
		t.Errorf("Timestamp seems incorrect: %v", err.Timestamp)
	}
}

func BenchmarkBuildError(b *testing.B) {
	underlying := errors.New("underlying error")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		err := NewBuildError("test operation", underlying).
			WithFile("scripts/scr_a/scr_a.gml").
			WithRecoverable(true)
		_ = err.Error()
	}
}
