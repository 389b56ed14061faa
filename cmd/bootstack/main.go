package main

import "github.com/openutm/bootstack/cmd/bootstack/commands"

func main() {
	commands.Execute()
}
