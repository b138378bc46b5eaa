package main

import "github.com/zfogg/sidechain/live/internal/cmd"

func main() {
	cmd.Execute()
}
