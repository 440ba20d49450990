package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"necroverse/internal/loader"
	"necroverse/internal/ui"
)

type scanOutcome struct {
	result []scanEntry
	err    error
}

// runScanWithUI runs scan in the background while a progress view
// consumes its events.
func runScanWithUI(ctx context.Context, title string, files []string, scan func(context.Context, loader.ProgressSink) ([]scanEntry, error)) ([]scanEntry, error) {
	events := make(chan loader.Event, 256)
	outcomeCh := make(chan scanOutcome, 1)

	go func() {
		res, err := scan(ctx, loader.ChannelSink{Ch: events})
		outcomeCh <- scanOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// the view may quit early; keep the scan from blocking on a full channel
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
