package main

import "bero-pm/internal/cli"

func main() {
	cli.Execute()
}
