package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CommandKind identifies a ":" command.
type CommandKind int

const (
	CmdSearch CommandKind = iota + 1
	CmdChat
	CmdRetry
	CmdReconnect
	CmdRefresh
	CmdHelp
	CmdQuit
)

type commandSpec struct {
	kind CommandKind
	// args: "" takes none, otherwise the usage shown when they are missing.
	args     string
	optional bool
}

var commands = map[string]commandSpec{
	"search":    {kind: CmdSearch, args: "<text>", optional: true},
	"chat":      {kind: CmdChat, args: "<name or wa_id>"},
	"retry":     {kind: CmdRetry},
	"reconnect": {kind: CmdReconnect},
	"refresh":   {kind: CmdRefresh},
	"help":      {kind: CmdHelp},
	"quit":      {kind: CmdQuit},
}

var aliases = map[string]string{
	"s": "search",
	"c": "chat",
	"h": "help",
	"q": "quit",
}

// ErrEmptyCommand is returned for a blank command line.
var ErrEmptyCommand = errors.New("empty command")

// Command is a parsed ":" command line.
type Command struct {
	Kind CommandKind
	// Name is the canonical command name, with aliases resolved.
	Name string
	Args string
}

// ParseCommand parses a command line with or without the leading ':'.
func ParseCommand(input string) (Command, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), ":")
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)
	if name == "" {
		return Command{}, ErrEmptyCommand
	}
	if full, ok := aliases[name]; ok {
		name = full
	}
	spec, ok := commands[name]
	if !ok {
		return Command{Name: name, Args: args}, fmt.Errorf("unknown command: %s", name)
	}
	cmd := Command{Kind: spec.kind, Name: name, Args: args}
	switch {
	case spec.args == "" && args != "":
		return cmd, fmt.Errorf(":%s takes no arguments", name)
	case spec.args != "" && !spec.optional && args == "":
		return cmd, fmt.Errorf("usage: :%s %s", name, spec.args)
	}
	return cmd, nil
}

// CompleteCommand returns the command names starting with prefix, for
// prompt autocompletion. Text after the name is not completed.
func CompleteCommand(prefix string) []string {
	prefix = strings.ToLower(strings.TrimPrefix(prefix, ":"))
	if prefix == "" || strings.Contains(prefix, " ") {
		return nil
	}
	var out []string
	for name := range commands {
		if strings.HasPrefix(name, prefix) && name != prefix {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
