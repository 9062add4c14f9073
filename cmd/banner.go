package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"ota-serve/ota"
)

// printInstructions tells the operator what to type into the device's
// terminal.
func printInstructions(w io.Writer, ep ota.Endpoint) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Issue update command:")
	fmt.Fprintln(w)
	color.New(color.FgGreen, color.Bold).Fprintln(w, ep.Command())
	fmt.Fprintln(w)
}
