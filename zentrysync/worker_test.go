package zentrysync

import (
	"errors"
	"testing"
	"time"
)

func TestSinceFor(t *testing.T) {
	cursor := "2026-02-15T08:30:00Z"
	lastSuccess := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	got := sinceFor(cursor, &lastSuccess)
	if !got.Equal(time.Date(2026, 2, 15, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("cursor wins: got %v", got)
	}

	got = sinceFor("", &lastSuccess)
	if !got.Equal(lastSuccess) {
		t.Errorf("last success fallback: got %v", got)
	}

	got = sinceFor("not a timestamp", nil)
	backstop := time.Now().Add(-30 * 24 * time.Hour)
	if got.Before(backstop.Add(-time.Minute)) || got.After(backstop.Add(time.Minute)) {
		t.Errorf("backstop fallback: got %v, want about 30 days ago", got)
	}
}

func TestRetryableFor(t *testing.T) {
	if retryableFor(nil) {
		t.Error("nil error is not retryable")
	}
	if retryableFor(&StructuralError{Path: "/v2/Contacts", Detail: "missing id"}) {
		t.Error("a structural error never heals on retry")
	}
	if retryableFor(&UnsupportedDirectionError{EntityType: EntitySalesOrder, Operation: "pull"}) {
		t.Error("a wrong-direction call never heals on retry")
	}
	if !retryableFor(&TransientError{Err: errors.New("gateway timeout")}) {
		t.Error("a transient error is retryable")
	}
	if !retryableFor(&DependencyUnresolvableError{EntityType: EntityCustomer, LocalId: "7"}) {
		t.Error("a missing dependency may exist on the next run")
	}
	if !retryableFor(errors.New("connection reset")) {
		t.Error("unclassified errors default to retryable")
	}
}

func TestEnvBoolDefault(t *testing.T) {
	t.Setenv("ZENTRYSYNC_TEST_FLAG", "")
	if !envBoolDefault("ZENTRYSYNC_TEST_FLAG", true) {
		t.Error("unset should return the default")
	}
	t.Setenv("ZENTRYSYNC_TEST_FLAG", "yes")
	if !envBoolDefault("ZENTRYSYNC_TEST_FLAG", false) {
		t.Error("yes should read as true")
	}
	t.Setenv("ZENTRYSYNC_TEST_FLAG", "OFF")
	if envBoolDefault("ZENTRYSYNC_TEST_FLAG", true) {
		t.Error("OFF should read as false")
	}
	t.Setenv("ZENTRYSYNC_TEST_FLAG", "maybe")
	if !envBoolDefault("ZENTRYSYNC_TEST_FLAG", true) {
		t.Error("unrecognized values fall back to the default")
	}
}
