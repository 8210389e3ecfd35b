package main

import "github.com/nextlevelbuilder/cmdgate/cmd"

func main() {
	cmd.Execute()
}
