package main

import "github.com/itsmostafa/inkbridge/cmd"

func main() {
	cmd.Execute()
}
