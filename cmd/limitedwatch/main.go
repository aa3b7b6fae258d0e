package main

import "limitedwatch/internal/cli"

func main() {
	cli.Execute()
}
