package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}

// Secret shows a required input whose characters are masked.
func Secret(title, description string) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		Description(description).
		EchoMode(huh.EchoModePassword).
		Value(&result).
		Validate(required).
		Run()
	return strings.TrimSpace(result), err
}
