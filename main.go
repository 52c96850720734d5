package main

import "github.com/shouni/go-web-harvest/cmd"

func main() {
	cmd.Execute()
}
