package main

import "github.com/weisyn/libretto-go/cmd/libretto/cmd"

func main() {
	cmd.Execute()
}
