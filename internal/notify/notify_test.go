package notify

import (
	"runtime"
	"testing"
)

func TestIsSupportedMatchesPlatform(t *testing.T) {
	n := New("")
	if n.IsSupported() != (runtime.GOOS == "windows") {
		t.Fatal("IsSupported should match runtime.GOOS")
	}
}

func TestNotifyOrphanPairErrorsOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("toast delivery not exercised in CI")
	}
	n := New("agentgov-test")
	if err := n.NotifyOrphanPair("impl-1", "review-1"); err == nil {
		t.Fatal("expected an error on non-Windows platforms")
	}
}
