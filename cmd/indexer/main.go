package main

import "github.com/vietddude/ocean-indexer/internal/cli"

func main() {
	cli.Execute()
}
