package main

import "github.com/RyanBlaney/kaldi-compliance/cmd"

func main() {
	cmd.Execute()
}
