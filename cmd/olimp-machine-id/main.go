// ABOUTME: Prints this machine's olimp-control identifier
// ABOUTME: Used when registering a host with the control server

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/lmio/olimp-control/internal/hostinfo"
)

func main() {
	if !hostinfo.IsRoot() {
		fmt.Fprintf(os.Stderr, "%s must be run as root to read hardware serials\n", color.RedString("Error:"))
		os.Exit(1)
	}

	id, err := hostinfo.MachineID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
	fmt.Println(id)
}
