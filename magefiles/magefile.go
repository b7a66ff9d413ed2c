//go:build mage

// Package main provides build targets for wayfinder using Mage.
//
// Usage:
//
//	mage build      Compile the wayfinder binary to bin/
//	mage test       Run all tests with the race detector
//	mage cover      Write a coverage profile to bin/coverage.out
//	mage lint       Run go vet and golangci-lint
//	mage walk       Walk the scenario in WAYFINDER_SCENARIO
//	mage clean      Remove build artifacts
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "wayfinder"
	binaryDir  = "bin"
	cmdDir     = "./cmd/wayfinder"
)

var binary = filepath.Join(binaryDir, binaryName)

// Build compiles the wayfinder binary to bin/. VERSION, if set, is stamped
// into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", binary}
	if v := os.Getenv("VERSION"); v != "" {
		args = append(args, "-ldflags", "-X main.version="+v)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Test runs all tests with the race detector.
func Test() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover runs all tests and writes a coverage profile to bin/.
func Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}

// Lint runs go vet, then golangci-lint.
func Lint() error {
	if err := sh.RunV(binGo, "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV(binLint, "run", "./...")
}

// Walk builds the binary and walks the scenario named by WAYFINDER_SCENARIO.
func Walk() error {
	mg.Deps(Build)
	path := os.Getenv("WAYFINDER_SCENARIO")
	if path == "" {
		return fmt.Errorf("WAYFINDER_SCENARIO is not set")
	}
	return sh.RunV(binary, "walk", path)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}
