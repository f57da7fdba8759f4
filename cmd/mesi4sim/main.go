// Command mesi4sim runs the MESI snooping-bus multiprocessor simulator.
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/mesi4sim/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "mesi4sim: internal invariant violation: %v\n", r)
			os.Exit(2)
		}
	}()

	cmd.Execute()
}
