package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode is the --ui flag of scan. It implements pflag.Value so a bad
// value is rejected while flags are parsed.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func (m *uiMode) String() string { return string(*m) }

func (m *uiMode) Type() string { return "auto|on|off" }

func (m *uiMode) Set(value string) error {
	switch v := uiMode(strings.TrimSpace(strings.ToLower(value))); v {
	case "":
		*m = uiModeAuto
	case uiModeAuto, uiModeOn, uiModeOff:
		*m = v
	default:
		return fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
	return nil
}

// useTUI decides whether the progress view runs. Auto needs a terminal on
// stdout and no --quiet, and never runs when output is machine-readable.
func (m uiMode) useTUI(quiet, binaryOut bool) bool {
	switch {
	case m == uiModeOff || binaryOut:
		return false
	case m == uiModeOn:
		return true
	default:
		return !quiet && isTerminal(os.Stdout)
	}
}
