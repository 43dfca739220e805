// Command tk manages personal tasks kept in a remote document store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/taskkeeper/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var a *app
	root := newRootCmd(&a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a != nil {
		if cerr := a.close(); cerr != nil {
			fmt.Fprintln(stderr, "warning:", cerr)
		}
	}
	if err != nil {
		fail(stderr, err)
		return 1
	}
	return 0
}

// fail prints the remote-reported message when there is one, a generic one otherwise.
func fail(w io.Writer, err error) {
	msg := errs.Message(err)
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		fmt.Fprintf(w, "error: %s (run `tk login`)\n", msg)
	case errors.Is(err, errs.ErrNetwork):
		fmt.Fprintf(w, "error: network unavailable, try again: %v\n", err)
	default:
		fmt.Fprintln(w, "error:", msg)
	}
}
