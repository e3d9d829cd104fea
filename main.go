package main

import "cookterm/internal/cli"

func main() {
	cli.Execute()
}
