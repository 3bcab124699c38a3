package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output of the loop itself.
var printlnFn = fmt.Println

// execIface is what the loop dispatches to. App satisfies it; tests use a stub.
type execIface interface {
	Exec(ctx context.Context, args []string) error
}

// runREPL reads commands line by line and hands each to a.Exec until EOF,
// "exit" or "quit". Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("panelctl> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			if err := a.Exec(ctx, parts); err != nil {
				printlnFn("Error:", err)
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}
