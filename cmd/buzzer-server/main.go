package main

import "github.com/oshokin/buzzer/cmd/buzzer-server/cmd"

func main() {
	cmd.Execute()
}
