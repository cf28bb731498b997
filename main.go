package main

import "service-catalog/cmd"

func main() {
	cmd.Execute()
}
