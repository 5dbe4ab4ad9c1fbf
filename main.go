package main

import "awssched/cmd"

func main() {
	cmd.Execute()
}
