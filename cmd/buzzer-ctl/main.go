package main

import "github.com/oshokin/buzzer/cmd/buzzer-ctl/cmd"

func main() {
	cmd.Execute()
}
