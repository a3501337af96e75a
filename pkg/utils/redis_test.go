package utils

import "testing"

func TestDialGuardScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if dialGuardAcquireScript == nil || dialGuardReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}
