package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// Command is one notifcenter subcommand.
type Command struct {
	Name        string
	Description string
	Usage       string
	Examples    []string
	Run         func(args []string) error
}

// NewFlagSet creates a flag set whose usage output matches PrintUsage.
func (c *Command) NewFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.Usage = func() { c.PrintUsage(os.Stderr) }
	return fs
}

func (c *Command) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", c.Description)
	fmt.Fprintf(w, "USAGE:\n    %s\n\n", c.Usage)
	if len(c.Examples) > 0 {
		fmt.Fprintln(w, "EXAMPLES:")
		for _, example := range c.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
	}
}

// VersionInfo holds build-time version information.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// CommandRegistry dispatches to registered commands.
type CommandRegistry struct {
	commands map[string]*Command
	order    []string
	fallback string
	version  VersionInfo
}

func NewCommandRegistry(v VersionInfo) *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
		version:  v,
	}
}

// Register adds a command. Commands are listed in registration order.
func (r *CommandRegistry) Register(cmd *Command) {
	if _, ok := r.commands[cmd.Name]; !ok {
		r.order = append(r.order, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
}

// SetDefault names the command run when no command, or only flags, are given.
func (r *CommandRegistry) SetDefault(name string) {
	r.fallback = name
}

// Execute runs the command named by args[0].
func (r *CommandRegistry) Execute(args []string) error {
	if len(args) == 0 || (len(args[0]) > 0 && args[0][0] == '-' && !isHelpFlag(args[0])) {
		if cmd, ok := r.commands[r.fallback]; ok {
			return cmd.Run(args)
		}
		r.PrintHelp(os.Stdout)
		return fmt.Errorf("no command specified")
	}

	name := args[0]
	if isHelpFlag(name) || name == "help" {
		if len(args) > 1 {
			if cmd, ok := r.commands[args[1]]; ok {
				cmd.PrintUsage(os.Stdout)
				return nil
			}
		}
		r.PrintHelp(os.Stdout)
		return nil
	}

	cmd, ok := r.commands[name]
	if !ok {
		r.PrintHelp(os.Stderr)
		return fmt.Errorf("unknown command: %s", name)
	}

	return cmd.Run(args[1:])
}

func isHelpFlag(s string) bool {
	return s == "-h" || s == "--help"
}

// PrintHelp prints overall CLI help.
func (r *CommandRegistry) PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "notifcenter - terminal and web notification center")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    notifcenter <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	for _, name := range r.order {
		cmd := r.commands[name]
		fmt.Fprintf(w, "    %-10s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'notifcenter help <command>' for more information on a command.")
}
