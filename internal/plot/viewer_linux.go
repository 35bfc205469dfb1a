//go:build linux

package plot

func viewerCommand() (string, []string) {
	return "xdg-open", nil
}
