package main

import "playjelly/cmd"

func main() {
	cmd.Execute()
}
