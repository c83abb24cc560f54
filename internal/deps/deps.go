package deps

import (
	"context"
	"fmt"
	"strings"
)

// Requirement defines an external binary reframe shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Versioned binaries accept "-version" and report their build line.
	Versioned bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// CheckBinaries resolves each requirement and, for versioned binaries that
// resolve, records the version line. A version probe failure leaves the
// binary available with the failure in Detail.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req))
	}
	return results
}

func check(ctx context.Context, req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := Resolve(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	if req.Versioned {
		version, err := VersionLine(ctx, path)
		if err != nil {
			status.Detail = err.Error()
		} else {
			status.Version = version
		}
	}
	return status
}
