// Command deepask answers tasks through a chat-completion service, optionally
// decomposing them into subtasks first.
package main

import "os"

// version is set with -ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
