package main

import (
	"testing"

	"github.com/zumanm1/netaudit/pkg/models"
)

func TestLayerNames(t *testing.T) {
	got := layerNames([]models.Layer{models.LayerInterfaces, models.LayerConsoleLines})
	want := "interfaces,console"
	if got != want {
		t.Fatalf("layerNames = %q, want %q", got, want)
	}
	if layerNames(nil) != "" {
		t.Fatalf("layerNames(nil) = %q, want empty", layerNames(nil))
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("R1, R2,,R3 ")
	if len(got) != 3 || got[0] != "R1" || got[1] != "R2" || got[2] != "R3" {
		t.Fatalf("splitList = %v", got)
	}
	if out := splitList(""); len(out) != 0 {
		t.Fatalf("splitList(\"\") = %v, want empty", out)
	}
}
