package main

import "waitroom-triage/internal/cli"

func main() {
	cli.Execute()
}
