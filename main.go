package main

import "tablesync/cmd"

func main() {
	cmd.Execute()
}
