package version

import (
	"fmt"
	"io"

	"github.com/Pal-droid/anizone/internal/userstate"
)

const (
	Version = "0.4.0"
)

// String returns the version line, noting whether SQLite user state was
// compiled in.
func String() string {
	if userstate.LocalAvailable {
		return fmt.Sprintf("Anizone v%s (with SQLite user state)", Version)
	}
	return fmt.Sprintf("Anizone v%s (without SQLite user state)", Version)
}

func ShowVersion(w io.Writer) {
	_, _ = fmt.Fprintln(w, String())
}
