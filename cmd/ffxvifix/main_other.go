//go:build !windows

package main

import (
	"fmt"
	"os"
)

func bootstrap() {
	fmt.Fprintln(os.Stderr, "ffxvifix runs inside the game process on windows only")
}
