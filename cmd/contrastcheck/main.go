// Command contrastcheck scans HTML files or pages for low contrast text and
// writes repaired markup.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
