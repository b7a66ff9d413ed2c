// Package main provides the wayfinder CLI: scripted navigation walks and a
// read-only inspector over the services they leave behind.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
