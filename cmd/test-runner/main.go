// Package main - test-runner
// Executable to run the end-to-end run scenario against the in-memory
// store, outside the unit test suite.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bringtheheat/server/test"
)

func main() {
	fmt.Println("BRING THE HEAT - FULL RUN SCENARIO SUITE")
	fmt.Println("========================================")

	ctx := context.Background()

	fmt.Println("\nStarting scenario: full run, fixed seed...")
	runTest := test.NewFullRunTest(time.Now().UnixNano())
	runTest.RunTest(ctx)

	results := runTest.GetResults()
	passed := 0
	failed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SCENARIO SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	if failed > 0 {
		fmt.Println("\nThe engine needs another look before deploy.")
		os.Exit(1)
	}
	fmt.Println("\nAll scenarios green.")
	os.Exit(0)
}
