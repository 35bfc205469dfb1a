//go:build darwin

package plot

func viewerCommand() (string, []string) {
	return "open", nil
}
