package main

import "github.com/KaramelBytes/rowloom-cli/cmd"

func main() {
	cmd.Execute()
}
