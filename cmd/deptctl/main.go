package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/cli"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync() //nolint:errcheck

	if err := cli.NewRootCommand(cli.ConfigOpener(logger)).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "deptctl:", err)
		os.Exit(1)
	}
}
