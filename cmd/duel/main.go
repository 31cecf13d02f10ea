package main

import "github.com/mcoot/capitalduel/internal/cli"

func main() {
	cli.Execute()
}
