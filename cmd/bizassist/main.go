package main

import "bizassist/internal/cli"

func main() {
	cli.Main()
}
