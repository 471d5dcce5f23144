// Command vcfbatch drives bcftools and the proteome generation tool over
// collections of compressed variant files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/proteogen/vcfbatch/internal/cli"
	"github.com/proteogen/vcfbatch/pkg/version"
)

// failureTallyExitCode distinguishes "strict mode, some units failed" from
// the generic configuration-error exit code 1.
const failureTallyExitCode = 3

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	var tally *cli.FailureTallyError
	if errors.As(err, &tally) {
		return failureTallyExitCode
	}
	return 1
}
