package main

import "github.com/unblockhq/unblock/cmd"

func main() {
	cmd.Execute()
}
