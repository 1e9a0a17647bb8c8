// Command queryctl answers English questions about local banking datasets.
package main

import (
	"context"
	"os"

	"github.com/project-euler/queryassist/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
