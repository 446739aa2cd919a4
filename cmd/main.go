package main

import "facestream/internal/cli"

func main() {
	cli.Execute()
}
