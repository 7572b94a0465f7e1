// The main package for the eventtide executable.
package main

import (
	"github.com/lmcheong/eventtide/cmd"
)

func main() {
	cmd.Execute()
}
