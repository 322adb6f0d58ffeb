package main

import "earnings-insight/internal/cli"

func main() {
	cli.Execute()
}
