package main

import "github.com/zinc-sig/otterbox/cmd"

func main() {
	cmd.Execute()
}
