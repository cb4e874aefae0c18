package main

import "github.com/mcoot/gocup/internal/cli"

func main() {
	cli.Execute()
}
