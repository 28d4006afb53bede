package meta

import (
	"fmt"
	"runtime"
)

// Info is the build context of a brewd binary, filled in by the linker.
type Info struct {
	Version   string
	Build     string
	Branch    string
	BuildTime string
	Platform  string
	GoVersion string
}

// Set with -ldflags "-X github.com/luma/brewd/internal/meta.Version=..."
var (
	// Version as an arbitrary string
	Version = "dev"

	// Build is the Git sha from when we are building
	Build string

	// Branch is the Git branch that we are building from
	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   Version,
		Build:     orUnknown(Build),
		Branch:    orUnknown(Branch),
		BuildTime: orUnknown(BuildTimeUTC),
		Platform:  platform,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("brewd %s (%s, branch %s) built %s with %s for %s",
		i.Version, i.Build, i.Branch, i.BuildTime, i.GoVersion, i.Platform)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}
