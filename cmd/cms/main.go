package main

import (
	"os"

	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/cli"
)

func main() {
	cmd := cli.NewRootCmd()
	err := cmd.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
