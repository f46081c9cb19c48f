package main

import "bigrag/cmd"

func main() {
	cmd.Execute()
}
