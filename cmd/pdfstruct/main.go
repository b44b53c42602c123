// Command pdfstruct structures documents into headers and sentences from the
// command line and manages the local SQLite library.
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
