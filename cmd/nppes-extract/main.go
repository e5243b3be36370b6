package main

import "github.com/pfrederiksen/nppes-extract/internal/cli"

func main() {
	cli.Execute()
}
