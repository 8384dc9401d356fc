package main

import "github.com/oshokin/companion-launcher/cmd/launcher/cmd"

func main() {
	cmd.Execute()
}
