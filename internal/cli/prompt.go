package cli

import (
	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
)

// ensurePassword returns the flag value as-is or prompts for one interactively.
func ensurePassword(flagValue, title string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	var password string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&password),
		),
	).Run()
	if err != nil {
		return "", errors.Wrap(err, "password prompt")
	}

	return password, nil
}
