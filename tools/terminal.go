package tools

import (
	"context"
	"fmt"
)

// CommandOutcome is what a terminal run produced once the user closed it.
type CommandOutcome struct {
	Output string
}

// TerminalLauncher opens a terminal pre-seeded with a command for the user
// to review, edit, and run. The returned handle resolves when the terminal
// closes; resolving with an error means the user declined.
type TerminalLauncher interface {
	Launch(command, explanation string) *Pending[CommandOutcome]
}

// Terminal asks the user to run a shell command and returns its output.
// The command never executes without the user seeing it first.
type Terminal struct {
	Launcher TerminalLauncher
}

func (t *Terminal) Descriptor() Descriptor {
	return Descriptor{
		Name:        "run_command",
		DisplayName: "Terminal",
		Icon:        "terminal-symbolic",
		Description: "Request permission to run a command in a terminal returning its result, add sudo if root permission is needed",
		Properties: []Property{
			{
				Name:        "command",
				Description: "The command to run and its parameters",
				Type:        "string",
				Required:    true,
			},
			{
				Name:        "explanation",
				Description: "Explain in simple words what the command will do to the system, be clear and honest",
				Type:        "string",
				Required:    true,
			},
		},
		Runnable:         true,
		RequiredBackends: []string{"terminal"},
	}
}

func (t *Terminal) Run(ctx context.Context, inv Invocation) (string, string, error) {
	command := stringArg(inv.Arguments, "command")
	if command == "" {
		return "I could not figure out what you want me to run",
			"Error: No command was provided", nil
	}
	if t.Launcher == nil {
		return "Terminal is not available", "Error: No terminal available", nil
	}

	explanation := stringArg(inv.Arguments, "explanation")
	if explanation == "" {
		explanation = "No explanation was provided"
	}

	outcome, err := t.Launcher.Launch(command, explanation).Await(ctx)
	if err != nil {
		return "The command was not run", fmt.Sprintf("Error: %v", err), nil
	}

	return "I ran the command successfully!", fmt.Sprintf("```\n%s\n```", outcome.Output), nil
}
