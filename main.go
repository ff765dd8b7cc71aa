package main

import "github.com/amberlynx/amberlynx/cmd"

func main() {
	cmd.Execute()
}
