package main

import "github.com/Tiliavir/shift-clock/cmd"

func main() {
	cmd.Execute()
}
