// Command ffxvifix is the game fix, built as a DLL the game loads at
// startup:
//
//	go build -buildmode=c-shared -o FFXVIFix.asi ./cmd/ffxvifix
//
// Loading the library starts the fix on its own goroutine so the loader
// lock is released at once.
package main

func init() {
	go bootstrap()
}

func main() {}
