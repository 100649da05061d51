package kv

import (
	"testing"

	"github.com/lovebughq/ladybug/lib/store/memory"
)

func TestVerifiedFlagLifecycle(t *testing.T) {
	s := New(memory.New(t.Context()))

	ok, err := s.VerifiedFlag(t.Context(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("fresh user should be unverified")
	}

	if err := s.SetVerifiedFlag(t.Context(), "user-1"); err != nil {
		t.Fatal(err)
	}

	ok, err = s.VerifiedFlag(t.Context(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("user should be verified after commit")
	}

	// committing twice is a no-op success
	if err := s.SetVerifiedFlag(t.Context(), "user-1"); err != nil {
		t.Fatalf("second commit errored: %v", err)
	}

	ok, err = s.VerifiedFlag(t.Context(), "user-2")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("other users must be unaffected")
	}
}
