package main

import "github.com/ethosgate/ethosgate/internal/cli"

func main() {
	cli.Execute()
}
