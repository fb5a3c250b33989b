package main

import "claudehist/cmd"

func main() {
	cmd.Execute()
}
