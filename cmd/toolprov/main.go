package main

import "toolprov/internal/cli"

func main() {
	cli.Execute()
}
