// Command pagent is the entry point for The People's Agent, a RAG-backed
// question-answering service over government policy documents. It provides a
// CLI (via Cobra) for one-shot questions and an HTTP server for the public
// API.
package main

import (
	"fmt"
	"os"

	"github.com/peoplesagent/pagent/cmd/pagent/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
