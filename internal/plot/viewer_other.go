//go:build !linux && !darwin && !windows

package plot

func viewerCommand() (string, []string) {
	return "xdg-open", nil
}
