package main

import "github.com/devicelab-dev/onboard-runner/pkg/cli"

func main() {
	cli.Execute()
}
