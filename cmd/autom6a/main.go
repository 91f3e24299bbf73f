package main

import (
	"os"

	"github.com/ZhaohnNwafu/Autom6A/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
