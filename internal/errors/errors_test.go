package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapInvalidConfig(t *testing.T) {
	err := WrapInvalidConfig(errors.New("namespace is required"))
	if !IsInvalidConfig(err) {
		t.Errorf("IsInvalidConfig() = false, want true")
	}
	if IsConfigAbsent(err) {
		t.Error("invalid configuration matched absent optional configuration")
	}
	if WrapInvalidConfig(err) != err {
		t.Error("WrapInvalidConfig() should not double-wrap")
	}
	if WrapInvalidConfig(nil) != nil {
		t.Error("WrapInvalidConfig(nil) should return nil")
	}
}

func TestWrapConfigAbsent(t *testing.T) {
	err := WrapConfigAbsent(errors.New("CLAUDE_API_KEY unset"))
	if !IsConfigAbsent(err) {
		t.Errorf("IsConfigAbsent() = false, want true")
	}
	if IsFatal(err) {
		t.Errorf("IsFatal() = true for absent configuration, want false")
	}
}

func TestWrapConfigAbsent_Nil(t *testing.T) {
	if WrapConfigAbsent(nil) != nil {
		t.Error("WrapConfigAbsent(nil) should return nil")
	}
}

func TestWrapMalformedInput_Idempotent(t *testing.T) {
	inner := WrapMalformedInput(errors.New("invalid JSON"))
	outer := WrapMalformedInput(inner)
	if outer != inner {
		t.Error("WrapMalformedInput() should not double-wrap")
	}
	if IsFatal(outer) {
		t.Errorf("IsFatal() = true for malformed input, want false")
	}
}

func TestWrapApplyFailed_Fatal(t *testing.T) {
	err := WrapApplyFailed(errors.New("kubectl exited 1"))
	if !IsApplyFailed(err) {
		t.Errorf("IsApplyFailed() = false, want true")
	}
	if !IsFatal(err) {
		t.Errorf("IsFatal() = false for apply failure, want true")
	}
}

func TestWrapRolloutTimeout_Fatal(t *testing.T) {
	err := WrapRolloutTimeout(fmt.Errorf("statefulset %s did not converge", "cribl-stream-standalone"))
	if !IsRolloutTimeout(err) {
		t.Errorf("IsRolloutTimeout() = false, want true")
	}
	if !IsFatal(err) {
		t.Errorf("IsFatal() = false for rollout timeout, want true")
	}
}

func TestTaxonomyIsDisjoint(t *testing.T) {
	absent := WrapConfigAbsent(errors.New("unset"))
	if IsApplyFailed(absent) || IsRolloutTimeout(absent) || IsMalformedInput(absent) {
		t.Error("absent configuration error matched an unrelated category")
	}

	timeout := WrapRolloutTimeout(errors.New("deadline"))
	if IsApplyFailed(timeout) || IsConfigAbsent(timeout) {
		t.Error("rollout timeout matched an unrelated category")
	}
}
