package main

import "github.com/ahrav/go-tribunal/internal/cli"

func main() { cli.Execute() }
