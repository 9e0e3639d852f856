// Command geoprobe drives the geolocator package against a simulated native
// location provider.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/geolocator/cmd/geoprobe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
