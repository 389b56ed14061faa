package stack

import (
	"context"
	"fmt"
	"sort"

	"github.com/compose-spec/compose-go/v2/cli"
	"github.com/compose-spec/compose-go/v2/types"
)

// LoadProject parses and validates a compose file before the controller
// drives it, so malformed stack definitions fail before any container
// operation runs.
func LoadProject(ctx context.Context, path, name string) (*types.Project, error) {
	options, err := cli.NewProjectOptions(
		[]string{path},
		cli.WithOsEnv,
		cli.WithName(name),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project options: %w", err)
	}

	project, err := options.LoadProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load compose project: %w", err)
	}
	return project, nil
}

// VolumeNames lists the named volumes a destructive reset would remove,
// sorted for stable operator output.
func VolumeNames(project *types.Project) []string {
	names := make([]string, 0, len(project.Volumes))
	for key, vol := range project.Volumes {
		name := vol.Name
		if name == "" {
			name = fmt.Sprintf("%s_%s", project.Name, key)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceNames lists the services defined by the project.
func ServiceNames(project *types.Project) []string {
	names := make([]string, 0, len(project.Services))
	for _, svc := range project.Services {
		names = append(names, svc.Name)
	}
	sort.Strings(names)
	return names
}
