// Package main is the entry point for the speedviz CLI.
package main

import "github.com/speedviz/speedviz/internal/cli"

func main() {
	cli.Execute()
}
