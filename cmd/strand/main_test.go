package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain lets this test binary double as the `strand` executable:
// testscript.Run spawns it as a subprocess with a marker environment
// variable set, and RunMain dispatches to strandMain instead of
// running the test suite when that marker is present.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"strand": func() int { return strandMain(os.Args[1:]) },
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
