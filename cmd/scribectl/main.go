package main

import "github.com/timmy/scribe/cmd/scribectl/cmd"

func main() {
	cmd.Execute()
}
