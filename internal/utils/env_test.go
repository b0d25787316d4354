package utils

import (
	"testing"
	"time"
)

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_POOL_SIZE", "25")
	if got := GetEnvInt("TEST_POOL_SIZE", 10); got != 25 {
		t.Fatalf("GetEnvInt = %d, want 25", got)
	}
	t.Setenv("TEST_POOL_SIZE", "not-a-number")
	if got := GetEnvInt("TEST_POOL_SIZE", 10); got != 10 {
		t.Fatalf("GetEnvInt on junk = %d, want default 10", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_CONN_LIFETIME", "90s")
	if got := GetEnvDuration("TEST_CONN_LIFETIME", time.Hour); got != 90*time.Second {
		t.Fatalf("GetEnvDuration = %v, want 90s", got)
	}
	if got := GetEnvDuration("TEST_CONN_LIFETIME_UNSET", time.Hour); got != time.Hour {
		t.Fatalf("GetEnvDuration default = %v, want 1h", got)
	}
}
