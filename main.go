package main

import "github.com/bryan-buckman/todod/internal/cli"

func main() {
	cli.Execute()
}
