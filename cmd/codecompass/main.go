package main

import (
	"github.com/codecompass/codecompass-mcp/internal/cli"
)

func main() {
	cli.Execute()
}
