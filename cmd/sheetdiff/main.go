package main

import "github.com/JonMunkholm/sheetdiff/internal/cli"

func main() {
	cli.Main()
}
