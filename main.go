package main

import "profile-store/cmd"

func main() {
	cmd.Execute()
}
