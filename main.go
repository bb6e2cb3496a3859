package main

import "github.com/carenet/apiserver/cmd"

func main() {
	cmd.Execute()
}
