package main

import (
	"os"

	"emberd/internal/emberctl"
)

func main() { os.Exit(emberctl.Main()) }
