// Command personactl is an operator tool for the assessment backend: it
// normalizes raw provider output, runs prompts against the configured
// provider, lists the question bank and resolves reports for a user.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
