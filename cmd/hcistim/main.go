package main

import "github.com/sarchlab/hcistim/cmd/hcistim/cmd"

func main() {
	cmd.Execute()
}
