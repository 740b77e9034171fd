// Package main provides the entry point for the textfang CLI tool.
package main

import (
	"github.com/Sumatoshi-tech/textfang/cmd/textfang/commands"
)

func main() {
	commands.Execute()
}
