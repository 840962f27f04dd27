package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// cmdShell reads commands until exit or EOF. The coordinator stays subscribed the
// whole time, so edits are debounced and pushed in the background.
func (e *env) cmdShell(ctx context.Context) error {
	fmt.Fprintln(e.out, `logictl shell. Type "help" for commands, "exit" to quit.`)
	for ctx.Err() == nil {
		fmt.Fprint(e.out, "> ")
		line, rerr := e.in.ReadString('\n')

		args, err := splitArgs(line)
		switch {
		case err != nil:
			fail(e.err, err)
		case len(args) == 0:
		case args[0] == "exit" || args[0] == "quit":
			return nil
		case args[0] == "help":
			usage(e.out)
		case args[0] == "shell":
			fmt.Fprintln(e.err, "already in shell")
		case args[0] == "flush":
			fail(e.err, e.sync.Flush(ctx))
		default:
			if err := e.dispatch(ctx, args[0], args[1:]); errors.Is(err, errUsage) {
				usage(e.err)
			} else {
				fail(e.err, err)
			}
		}

		if rerr != nil {
			fmt.Fprintln(e.out)
			return nil
		}
	}
	return nil
}

// splitArgs splits a line on whitespace, keeping single- or double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inArg = r, true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
