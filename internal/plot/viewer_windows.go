//go:build windows

package plot

func viewerCommand() (string, []string) {
	return "rundll32", []string{"url.dll,FileProtocolHandler"}
}
