package main

import (
	"github.com/robotalks/uartpipe/pkg/cli/sh"
	"github.com/robotalks/uartpipe/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
