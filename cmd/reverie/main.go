package main

import (
	"context"
	"os"

	"github.com/lazypower/reverie/internal/cli"
)

func main() {
	if err := cli.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
