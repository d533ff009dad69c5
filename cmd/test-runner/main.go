// Package main - test-runner
// Executable to run the scripted gameplay scenarios.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MRamiBalles/SnakeArcade/server/internal/platform/logger"
	"github.com/MRamiBalles/SnakeArcade/server/test"
)

func main() {
	fmt.Println("SNAKE ARCADE - GAMEPLAY SCENARIO SUITE")
	fmt.Println("======================================")

	suite := test.NewSuite(logger.NewLogger())
	suite.RunTest(context.Background())

	// Summary
	passed := 0
	failed := 0
	for _, r := range suite.GetResults() {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	if failed > 0 {
		os.Exit(1)
	}
}
