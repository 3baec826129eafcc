package main

import "github.com/flowguard/flowguard/internal/cli"

func main() {
	cli.Execute()
}
