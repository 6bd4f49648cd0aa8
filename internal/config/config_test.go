package config

import (
	"testing"
	"time"
)

func TestStringOr_FallsBackWhenUnset(t *testing.T) {
	t.Setenv("CONFIG_TEST_STRING", "")
	if got := StringOr("CONFIG_TEST_STRING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("CONFIG_TEST_STRING", "set")
	if got := StringOr("CONFIG_TEST_STRING", "fallback"); got != "set" {
		t.Fatalf("expected set value, got %q", got)
	}
}

func TestIntOr_InvalidValueFallsBack(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "not-a-number")
	if got := IntOr("CONFIG_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7 for invalid int, got %d", got)
	}
	t.Setenv("CONFIG_TEST_INT", "42")
	if got := IntOr("CONFIG_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestDurationSecondsOr_ParsesFractionalSeconds(t *testing.T) {
	t.Setenv("CONFIG_TEST_DUR", "2.5")
	got := DurationSecondsOr("CONFIG_TEST_DUR", time.Second)
	want := 2500 * time.Millisecond
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDurationMillisOr_FallsBackWhenUnset(t *testing.T) {
	got := DurationMillisOr("CONFIG_TEST_MISSING", 500*time.Millisecond)
	if got != 500*time.Millisecond {
		t.Fatalf("expected fallback 500ms, got %v", got)
	}
}
