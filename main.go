package main

import "hexingest/cmd"

func main() {
	cmd.Execute()
}
