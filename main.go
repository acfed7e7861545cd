package main

import "phrasebot/cmd"

func main() {
	cmd.Execute()
}
