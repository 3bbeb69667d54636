package main

import (
	"arbwatcher/internal/cli"
)

func main() {
	cli.Execute()
}
