package main

import "github.com/taskhub/apiserver/cmd"

func main() {
	cmd.Execute()
}
