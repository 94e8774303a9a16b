// Command dicectl verifies published rounds, simulates the house edge of a
// configuration and mints development tokens.
package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "verify":
		err = runVerify(os.Args[2:])
	case "simulate":
		err = runSimulate(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		pterm.Error.Printfln("Unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  dicectl verify   -entropy <hex> -sender <addr> -nonce <n> [-salt <hex>] [-die-low 1 -die-high 6]")
	fmt.Println("  dicectl simulate [-rounds 100000] [-guess 3] [-guess-high 0] [-stake 10] [-num 57 -den 10]")
	fmt.Println("  dicectl token    -sender <addr> [-ttl 24h]   (reads JWT_SECRET)")
}
