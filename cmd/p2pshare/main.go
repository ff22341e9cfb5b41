package main

import "github.com/rudransh-shrivastava/p2p-share/internal/client/cmd"

func main() {
	cmd.Execute()
}
