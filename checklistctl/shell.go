package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/mattn/go-shellwords"

	"github.com/bringyour/checklist/checklist"
)

const shellUsage = `Checklist shell.

Usage:
    shell list
    shell add <name> [--category=<category>]
    shell edit <uid> <name> [--category=<category>]
    shell remove <uid>
    shell toggle <uids>...
    shell use <namespace>
    shell search <search>
    shell clear-search
    shell show-completed
    shell hide-completed
    shell grouped
    shell ungrouped
    shell suggest <text>
    shell errors
    shell quit

Options:
    -h --help                Show this screen.
    --category=<category>    Item category [default: other].`

// one session for many commands. the push channel runs in the background
// so the view stays converged between commands
func shell(opts docopt.Opts) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	go client.Run(ctx)

	parser := &docopt.Parser{
		HelpHandler: func(err error, usage string) {
			if err == nil {
				fmt.Println(usage)
			} else {
				Err.Printf("Invalid command or arguments. Use 'help' for usage.\n")
			}
		},
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")

		input, err := reader.ReadString('\n')
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "help" {
			input = "--help"
		}

		// enables quotation marks
		args, err := shellwords.Parse(input)
		if err != nil {
			parser.HelpHandler(err, shellUsage)
			continue
		}

		shellOpts, err := parser.ParseArgs(shellUsage, args, "")
		if err != nil {
			continue
		}

		quit, err := shellCommand(ctx, client, shellOpts)
		if err != nil {
			Err.Printf("%s\n", err)
		}
		if quit {
			return nil
		}
	}
}

func shellCommand(ctx context.Context, client *checklist.Client, opts docopt.Opts) (quit bool, returnErr error) {
	render := func() {
		Out.Print(renderView(client.Namespace().Key(), client.View(), client.Preferences()))
	}

	if list_, _ := opts.Bool("list"); list_ {
		render()
	} else if add_, _ := opts.Bool("add"); add_ {
		name, _ := opts.String("<name>")
		category, _ := opts.String("--category")
		_, returnErr = client.Add(ctx, name, category)
	} else if edit_, _ := opts.Bool("edit"); edit_ {
		uid, _ := opts.String("<uid>")
		name, _ := opts.String("<name>")
		category, _ := opts.String("--category")
		returnErr = client.Edit(ctx, uid, name, category)
	} else if remove_, _ := opts.Bool("remove"); remove_ {
		uid, _ := opts.String("<uid>")
		returnErr = client.Remove(ctx, uid)
	} else if toggle_, _ := opts.Bool("toggle"); toggle_ {
		uids, _ := opts["<uids>"].([]string)
		for _, uid := range uids {
			client.Toggle(uid)
		}
		render()
	} else if use_, _ := opts.Bool("use"); use_ {
		namespaceStr, _ := opts.String("<namespace>")
		key, err := checklist.ParseNamespaceKey(namespaceStr)
		if err != nil {
			return false, err
		}
		if _, err := client.SetNamespace(ctx, key); err != nil {
			return false, err
		}
		render()
	} else if search_, _ := opts.Bool("search"); search_ {
		search, _ := opts.String("<search>")
		returnErr = client.SetSearchText(search)
		render()
	} else if clearSearch_, _ := opts.Bool("clear-search"); clearSearch_ {
		returnErr = client.ClearSearch()
		render()
	} else if showCompleted_, _ := opts.Bool("show-completed"); showCompleted_ {
		returnErr = client.ShowCompleted()
		render()
	} else if hideCompleted_, _ := opts.Bool("hide-completed"); hideCompleted_ {
		returnErr = client.SetHideCompleted(true)
		render()
	} else if grouped_, _ := opts.Bool("grouped"); grouped_ {
		returnErr = client.SetGrouped(true)
		render()
	} else if ungrouped_, _ := opts.Bool("ungrouped"); ungrouped_ {
		returnErr = client.SetGrouped(false)
		render()
	} else if suggest_, _ := opts.Bool("suggest"); suggest_ {
		text, _ := opts.String("<text>")
		for _, category := range client.SuggestCategories(text) {
			Out.Printf("%s\n", category)
		}
	} else if errors_, _ := opts.Bool("errors"); errors_ {
		for {
			select {
			case err := <-client.CommitErrors():
				Out.Printf("%s\n", err)
			default:
				return false, nil
			}
		}
	} else if quit_, _ := opts.Bool("quit"); quit_ {
		if err := client.Flush(ctx); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, returnErr
}
