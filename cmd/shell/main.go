package main

import "github.com/vietddude/shell/internal/cli"

func main() {
	cli.Execute()
}
