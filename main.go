package main

import (
	"github.com/pterodactyl/scribe/cmd"
)

func main() {
	cmd.Execute()
}
