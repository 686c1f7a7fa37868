package main

import "github.com/brensch/gdcmatrix/cmd"

func main() {
	cmd.Execute()
}
