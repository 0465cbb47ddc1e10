// -----------------------------------------------------------------------
// Artifact Namer - date-partitioned directories and timestamped filenames
// -----------------------------------------------------------------------

package render

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	dateFolderLayout = "02-01-2006"
	timestampLayout  = "15-04-05"
	errorMarker      = "__error__"
	keySeparator     = "__"
)

// DateFolder returns the artifact directory name for the instant, local time.
func DateFolder(t time.Time) string {
	return t.Format(dateFolderLayout)
}

// Filename derives the artifact filename for a key, extension and instant.
func Filename(key, ext string, t time.Time) string {
	return fmt.Sprintf("%s%s%s.%s", key, keySeparator, t.Format(timestampLayout), ext)
}

// ErrorScreenshotFilename derives the diagnostic screenshot filename written
// when a PDF render fails.
func ErrorScreenshotFilename(key string, t time.Time) string {
	return fmt.Sprintf("%s%s%s.png", key, errorMarker, t.Format(timestampLayout))
}

// Parse inverts Filename. dateFolder may be empty, in which case the returned
// timestamp carries only the time of day. Used by offline tooling.
func Parse(filename, dateFolder string) (key string, ts time.Time, err error) {
	base := strings.TrimSuffix(filename, path.Ext(filename))

	sep := keySeparator
	if i := strings.LastIndex(base, errorMarker); i >= 0 && i == len(base)-len(errorMarker)-len(timestampLayout) {
		sep = errorMarker
	}

	i := strings.LastIndex(base, sep)
	if i <= 0 {
		return "", time.Time{}, fmt.Errorf("filename %q has no timestamp separator", filename)
	}
	key = base[:i]
	stamp := base[i+len(sep):]

	layout := timestampLayout
	if dateFolder != "" {
		stamp = dateFolder + " " + stamp
		layout = dateFolderLayout + " " + timestampLayout
	}

	ts, err = time.ParseInLocation(layout, stamp, time.Local)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("filename %q has invalid timestamp: %w", filename, err)
	}
	return key, ts, nil
}

// ParseDateFolder parses a date-partition directory name.
func ParseDateFolder(name string) (time.Time, error) {
	return time.ParseInLocation(dateFolderLayout, name, time.Local)
}
