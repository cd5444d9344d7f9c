package main

import "github.com/OpenTraceLab/OpenTraceAHB/cmd/ahb/cmd"

func main() {
	cmd.Execute()
}
