package helpers

import "strings"

// ParseOutputPath parses an output path in the format "local[:remote]".
// Without a colon the remote path is empty and the artifact is only written
// locally.
func ParseOutputPath(path string) (local, remote string) {
	local, remote, _ = strings.Cut(path, ":")
	return strings.TrimSpace(local), strings.TrimSpace(remote)
}
