package mirror

import "time"

// Report summarizes one run.
type Report struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`

	Included int `json:"included"`
	Excluded int `json:"excluded"`

	// ByOverride and ByCondition split Excluded by cause.
	ByOverride  int `json:"by_override"`
	ByCondition int `json:"by_condition"`
	// ByReason splits ByCondition by the policy check that rejected.
	ByReason map[string]int `json:"by_reason"`

	Files        int `json:"files"`
	Dirs         int `json:"dirs"`
	SymlinkDirs  int `json:"symlink_dirs"`
	CopyFailures int `json:"copy_failures"`

	// DevDependencies is the number of dev dependencies known to the run.
	DevDependencies int `json:"dev_dependencies"`
	// DevDependenciesFound is set when the manifest declared devDependencies.
	DevDependenciesFound bool `json:"dev_dependencies_found"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

func newReport(source, destination string) *Report {
	return &Report{
		Source:      source,
		Destination: destination,
		ByReason:    make(map[string]int),
		Started:     time.Now(),
	}
}
