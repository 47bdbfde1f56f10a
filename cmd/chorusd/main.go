package main

import "github.com/VentureIA/chorus/internal/daemon"

func main() { daemon.Main() }
