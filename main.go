package main

import (
	"fmt"
	"os"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "DeltaKernel-Engine"
)

func main() {
	fmt.Printf("%s v%s\n", Name, Version)
	fmt.Println("Go write engine for Delta-format tables")
	fmt.Println("Status: Development")
	os.Exit(0)
}
