// Package buildinfo holds the mixer's version identity (spec §9,
// "version/buildinfo command").
package buildinfo

import (
	"fmt"
	"io"
	"time"
)

const (
	MajorVersion = 1
	MinorVersion = 0
	PointVersion = 0
)

var BuildDate = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "Version:\t%d.%d.%d\n", MajorVersion, MinorVersion, PointVersion)
	fmt.Fprintf(w, "BuildDate:\t%s\n", BuildDate.Format("2006-01-02 15:04:05"))
}

func GetVersion() string {
	return fmt.Sprintf("%d.%d.%d", MajorVersion, MinorVersion, PointVersion)
}
