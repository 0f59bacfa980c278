package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/stagekit/errors"
)

type inner struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,hostname_port"`
}

type sample struct {
	MaxConcurrency int    `mapstructure:"max_concurrency" validate:"min=1"`
	Format         string `mapstructure:"format" validate:"oneof=json console"`
	OutputBuffer   int    `validate:"gte=0"`
	Telemetry      inner  `mapstructure:"telemetry"`
}

func TestValidate_OK(t *testing.T) {
	s := sample{MaxConcurrency: 4, Format: "json", Telemetry: inner{Endpoint: "localhost:4318"}}
	if err := Validate(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	s := sample{MaxConcurrency: 0, Format: "xml", OutputBuffer: -1}
	err := Validate(s)
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeInvalidConfig {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
	msg := appErr.Message
	for _, want := range []string{
		"max_concurrency: must be at least 1",
		"format: must be one of: json console",
		"output_buffer: must be greater than or equal to 0",
		"telemetry.endpoint: is required",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 4 {
		t.Errorf("expected 4 field errors, got %v", appErr.Details["fields"])
	}
}

func TestValidate_NonStruct(t *testing.T) {
	if err := Validate(42); err == nil {
		t.Fatal("expected error for non-struct input")
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"MaxConcurrency": "max_concurrency",
		"Name":           "name",
		"already_snake":  "already_snake",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
