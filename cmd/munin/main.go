package main

import "github.com/ssargent/munin/cmd/munin/cmd"

func main() {
	cmd.Execute()
}
