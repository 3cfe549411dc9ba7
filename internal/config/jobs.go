package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"groupsync/internal/domain"
	"groupsync/internal/osver"
)

// Job is one scheduled synchronization, as declared in the jobs file.
type Job struct {
	Name         string      `yaml:"name"`
	Schedule     string      `yaml:"schedule"` // cron expression
	SourceGroups []string    `yaml:"groups"`   // empty means org-wide
	TargetGroup  string      `yaml:"target"`
	TargetID     string      `yaml:"target_id"`
	Mode         string      `yaml:"mode"` // users, devices, or both
	Filters      []JobFilter `yaml:"filters"`
	Clear        *bool       `yaml:"clear"` // clear-before-add, default true
	DryRun       bool        `yaml:"dry_run"`
	Limit        int         `yaml:"limit"`
}

// JobFilter is one platform's version gate in a job declaration.
type JobFilter struct {
	Platform string `yaml:"platform"`
	Version  string `yaml:"version"`
	Op       string `yaml:"op"` // defaults to lt
}

// ClearFirst resolves the clear-before-add toggle, defaulting to true.
func (j Job) ClearFirst() bool {
	if j.Clear == nil {
		return true
	}
	return *j.Clear
}

type jobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobs reads and validates the scheduled-jobs file. Every job must be
// fully valid; a daemon that quietly dropped a misdeclared job would look
// healthy while skipping work.
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read jobs file %s: %w", path, err)
	}

	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse jobs file %s: %w", path, err)
	}

	names := make(map[string]bool, len(file.Jobs))
	for i, job := range file.Jobs {
		if err := job.validate(); err != nil {
			return nil, fmt.Errorf("job %d (%q): %w", i+1, job.Name, err)
		}
		if names[job.Name] {
			return nil, fmt.Errorf("job %d: duplicate job name %q", i+1, job.Name)
		}
		names[job.Name] = true
	}

	return file.Jobs, nil
}

func (j Job) validate() error {
	if j.Name == "" {
		return fmt.Errorf("name is required")
	}
	if j.Schedule == "" {
		return fmt.Errorf("schedule is required")
	}
	if j.TargetGroup == "" && j.TargetID == "" {
		return fmt.Errorf("target or target_id is required")
	}
	if _, err := domain.ParseAddMode(j.Mode); err != nil {
		return err
	}
	for _, filter := range j.Filters {
		if filter.Platform == "" || filter.Version == "" {
			return fmt.Errorf("filter needs both platform and version")
		}
		if domain.ParsePlatform(filter.Platform) == domain.PlatformOther {
			return fmt.Errorf("unknown platform %q", filter.Platform)
		}
		if filter.Op != "" {
			if _, err := osver.ParseOperator(filter.Op); err != nil {
				return err
			}
		}
	}
	return nil
}
