package main

import "foodcart/cmd"

func main() {
	cmd.Execute()
}
