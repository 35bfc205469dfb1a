package plot

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrNoViewer is returned when the platform image viewer cannot be found.
var ErrNoViewer = errors.New("no image viewer")

// FindViewer returns the path of the platform viewer command.
func FindViewer() (string, error) {
	name, _ := viewerCommand()
	binPath, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoViewer, err)
	}
	return binPath, nil
}

// Show opens every path with the platform viewer and returns without
// waiting for the viewer to exit.
func Show(ctx context.Context, paths ...string) error {
	binPath, err := FindViewer()
	if err != nil {
		return err
	}
	_, args := viewerCommand()

	var errs []error
	for _, path := range paths {
		cmd := exec.CommandContext(ctx, binPath, append(args, path)...)
		if err := cmd.Start(); err != nil {
			errs = append(errs, fmt.Errorf("opening %s: %w", path, err))
			continue
		}
		go func() { _ = cmd.Wait() }()
	}
	return errors.Join(errs...)
}
