package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Put(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	SetText(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Flush(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Save(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	PlaceImage(ctx context.Context, args []string) error
	Resume(ctx context.Context) error
	Users(ctx context.Context) error
	Cursor(ctx context.Context, args []string) error
	Drag(ctx context.Context, args []string) error
	DragEnd(ctx context.Context, args []string) error
	Drags(ctx context.Context) error
}

// runREPL reads a line at a time, parses the first token as the command and
// dispatches to methods on 'a'. Handlers report their own errors; the loop
// only prints usage problems. It exits on EOF or "exit"/"quit".
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("board> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			printlnFn("Available commands: put, move, text, delete, flush, (l)ist, show, save, upload, image, resume, users, cursor, drag, dragend, drags, exit")

		case "put":
			_ = a.Put(ctx, args)

		case "move":
			_ = a.Move(ctx, args)

		case "text":
			_ = a.SetText(ctx, args)

		case "delete", "rm":
			_ = a.Delete(ctx, args)

		case "flush":
			_ = a.Flush(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "show":
			_ = a.Show(ctx, args)

		case "save":
			_ = a.Save(ctx)

		case "upload":
			_ = a.Upload(ctx, args)

		case "image":
			_ = a.PlaceImage(ctx, args)

		case "resume":
			_ = a.Resume(ctx)

		case "users":
			_ = a.Users(ctx)

		case "cursor":
			_ = a.Cursor(ctx, args)

		case "drag":
			_ = a.Drag(ctx, args)

		case "dragend":
			_ = a.DragEnd(ctx, args)

		case "drags":
			_ = a.Drags(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
