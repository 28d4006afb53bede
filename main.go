package main

import (
	"github.com/luma/brewd/cmd"
)

func main() {
	cmd.Execute()
}
