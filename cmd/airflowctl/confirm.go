// File: cmd/airflowctl/confirm.go
// Brief: Shared confirmation prompts for destructive commands.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	errAborted              = errors.New("aborted")
	errConfirmationRequired = errors.New("refusing to proceed without confirmation; rerun with --yes")
)

func confirmAction(ctx context.Context, in io.Reader, out io.Writer, dec approvalDecision, prompt string) error {
	if out == nil {
		return errors.New("confirmation output is nil")
	}
	if dec.Approved {
		return nil
	}
	if !dec.InteractiveTTY {
		return errConfirmationRequired
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = "Confirm:"
	}
	fmt.Fprint(out, prompt+" [yes/no] ")

	closeInputOnCancel := func() {
		rc, ok := in.(io.ReadCloser)
		if !ok {
			return
		}
		// Never close the real process stdin.
		if f, ok := in.(*os.File); ok && os.Stdin != nil && f.Fd() == os.Stdin.Fd() {
			return
		}
		_ = rc.Close()
	}

	type readResult struct {
		line string
		err  error
	}
	reader := bufio.NewReader(in)
	results := make(chan readResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		results <- readResult{line: line, err: err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		closeInputOnCancel()
		fmt.Fprintln(out)
		return ctx.Err()
	case res = <-results:
	}
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		return res.err
	}
	switch strings.ToLower(strings.TrimSpace(res.line)) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}

// confirmed turns a prompt outcome into a yes/no answer. Declining or being
// unable to ask is a "no"; only I/O and cancellation errors are returned.
func confirmed(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errAborted), errors.Is(err, errConfirmationRequired):
		return false, nil
	default:
		return false, err
	}
}
