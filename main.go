package main

import "github.com/ValentinKolb/stcp/cmd"

func main() {
	cmd.Execute()
}
