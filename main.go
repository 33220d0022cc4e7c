package main

import (
	"os"

	"github.com/intel/test-framework-and-suites-for-android-sub002/cmd"
)

// version is set during build with -ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	os.Exit(cmd.Execute())
}
