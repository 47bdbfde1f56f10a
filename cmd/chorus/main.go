package main

import "github.com/VentureIA/chorus/internal/cli"

func main() { cli.Main() }
