// Command minishell is the interactive shell built on the engine in
// internal/. Flag parsing follows the pack's getopt idiom rather than
// hand-rolled flag scanning.
package main

import (
	"fmt"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"minishell/internal/repl"
	"minishell/internal/shellctx"
)

const version = "minishell 0.1.0"

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	opts := getopt.New()

	command := opts.StringLong("command", 'c', "", "run COMMAND then exit")
	showVersion := opts.BoolLong("version", 0, "print version and exit")
	showHelp := opts.BoolLong("help", 'h', "show this help")

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintln(os.Stderr, "minishell:", err)
		return 1
	}

	if *showHelp {
		fmt.Fprintln(os.Stdout, "usage: minishell [-c COMMAND] [--version] [--help]")
		opts.PrintOptions(os.Stdout)
		return 0
	}
	if *showVersion {
		fmt.Fprintln(os.Stdout, version)
		return 0
	}

	ctx := shellctx.New()
	ctx.InstallSIGCHLD()
	r := repl.New(ctx)

	if *command != "" {
		return r.RunOnce(*command)
	}

	return r.Run()
}
