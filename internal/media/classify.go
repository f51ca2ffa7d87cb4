package media

import (
	"context"
	"errors"
	"strings"
)

// Failure modes that no amount of retrying will fix: the source is gone,
// locked, or not something the downloader understands.
var terminalPatterns = []string{
	"unsupported url",
	"is not a valid url",
	"video unavailable",
	"this video is not available",
	"private video",
	"this video is private",
	"video has been removed",
	"removed by the uploader",
	"account terminated",
	"http error 404",
	"http error 410",
	"age-restricted",
	"members-only",
	"unable to extract",
	"no video formats",
}

// Failure modes that tend to clear up on their own: throttling, server
// errors, flaky networks.
var transientPatterns = []string{
	"http error 429",
	"http error 500",
	"http error 502",
	"http error 503",
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure",
	"network is unreachable",
	"unable to connect",
	"eof",
}

// classifyToolFailure decides whether an external-tool failure is transient
// based on its combined output. Terminal patterns win over transient ones;
// anything unrecognized is treated as transient, bounded by the retry budget.
func classifyToolFailure(output string) bool {
	out := strings.ToLower(output)

	for _, p := range terminalPatterns {
		if strings.Contains(out, p) {
			return false
		}
	}

	for _, p := range transientPatterns {
		if strings.Contains(out, p) {
			return true
		}
	}

	return true
}

// execTransient classifies process-level errors (as opposed to tool output):
// deadline and cancellation are always transient.
func execTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// platformFromURL maps a source URL to a coarse platform label for metadata
func platformFromURL(sourceURL string) string {
	u := strings.ToLower(sourceURL)
	switch {
	case strings.Contains(u, "youtube.com"), strings.Contains(u, "youtu.be"):
		return "youtube"
	case strings.Contains(u, "tiktok.com"):
		return "tiktok"
	case strings.Contains(u, "vimeo.com"):
		return "vimeo"
	case strings.Contains(u, "twitch.tv"):
		return "twitch"
	case strings.Contains(u, "instagram.com"):
		return "instagram"
	case strings.Contains(u, "twitter.com"), strings.Contains(u, "x.com"):
		return "twitter"
	default:
		return "other"
	}
}
