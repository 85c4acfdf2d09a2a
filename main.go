package main

import "Cutline/cmd"

func main() {
	cmd.Execute()
}
