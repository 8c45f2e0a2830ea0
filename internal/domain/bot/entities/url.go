package entities

import (
	"regexp"
	"strings"
)

var videoURLRe = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.|music\.)?(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|live/|embed/)|youtu\.be/)([0-9A-Za-z_-]{11})(?:[?&#/].*)?$`)

// ParseVideoURL returns the video id of a YouTube watch, short, live or
// youtu.be link, and false for anything else
func ParseVideoURL(raw string) (string, bool) {
	m := videoURLRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return m[1], true
}
