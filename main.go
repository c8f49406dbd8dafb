package main

import "github.com/andresmejia3/focuswatch/cmd"

func main() {
	cmd.Execute()
}
