package main

import "github.com/nijaru/yt-chat/cli"

func main() {
	cli.Execute()
}
