// The main package for the chapters executable.
package main

import (
	"github.com/JakeFAU/chapter-crawler/cmd"
)

func main() {
	cmd.Execute()
}
