package main

import "os"

// version can be set during build with -ldflags
var version = "dev"

func main() {
	root := newRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
