// Proxypal is a management control plane for a fleet of LLM provider
// accounts, fronting a separately-distributed forwarding daemon that holds
// the actual OAuth credentials and performs completion calls.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-version" {
		fmt.Println("proxypal", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
