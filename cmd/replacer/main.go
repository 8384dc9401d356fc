package main

import "github.com/oshokin/companion-launcher/cmd/replacer/cmd"

func main() {
	cmd.Execute()
}
