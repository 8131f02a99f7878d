package main

import "github.com/RyanBlaney/graphical-soundscape/cmd"

func main() {
	cmd.Execute()
}
