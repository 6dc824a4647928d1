package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/boardsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the board server (default from Config)
//	-b string   board id to join
//	-n string   display name shown to other users
//	-f string   path of the local staging database
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-b", "-n", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "base URL of the board server")
	fs.StringVar(&cfg.BoardID, "b", cfg.BoardID, "board id to join")
	fs.StringVar(&cfg.DisplayName, "n", cfg.DisplayName, "display name shown to other users")
	fs.StringVar(&cfg.LocalDBPath, "f", cfg.LocalDBPath, "path of the local staging database")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
