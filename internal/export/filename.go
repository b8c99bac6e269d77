package export

import (
	"fmt"
	"time"
)

// DefaultFilenameLayout renders timestamps as MMDDYYYYHHMMSS.
const DefaultFilenameLayout = "01022006150405"

// DefaultFilename returns "<timestamp>_user_stats_<kind>_export.csv".
func DefaultFilename(kind string, now time.Time, layout string) string {
	if layout == "" {
		layout = DefaultFilenameLayout
	}
	return fmt.Sprintf("%s_user_stats_%s_export.csv", now.Format(layout), kind)
}
