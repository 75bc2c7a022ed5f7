// Command bizdesk opens the interactive desk directly; it is shorthand for
// "bizassist desk".
package main

import "bizassist/internal/cli"

func main() {
	cli.MainDesk()
}
