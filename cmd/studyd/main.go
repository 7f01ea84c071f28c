package main

import (
	"github.com/OhItsLena/coding-study-test-sub000/cmd/studyd/cmd"
)

func main() {
	cmd.Execute()
}
