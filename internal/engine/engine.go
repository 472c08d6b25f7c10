// File: internal/engine/engine.go
// Brief: Docker Engine API access for container status reporting.

// Package engine reads container state straight from the Docker daemon. It
// is optional: callers fall back to the compose CLI when Dial fails.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

const (
	ProjectLabel = "com.docker.compose.project"
	ServiceLabel = "com.docker.compose.service"
)

// Container is the status of one compose-managed container.
type Container struct {
	Service string
	Name    string
	Image   string
	State   string
	Status  string
}

type Client struct {
	api *client.Client
}

// Dial connects using the DOCKER_* environment and checks that the daemon
// answers.
func Dial(ctx context.Context) (*Client, error) {
	api, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := api.ContainerList(ctx, client.ContainerListOptions{Limit: 1}); err != nil {
		_ = api.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return &Client{api: api}, nil
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// Containers lists every container of the compose project, running or not,
// sorted by service then name.
func (c *Client) Containers(ctx context.Context, project string) ([]Container, error) {
	f := make(client.Filters).Add("label", ProjectLabel+"="+project)
	res, err := c.api.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("list containers (project=%s): %w", project, err)
	}
	out := make([]Container, 0, len(res.Items))
	for _, s := range res.Items {
		out = append(out, fromSummary(s))
	}
	sortContainers(out)
	return out, nil
}

func fromSummary(s container.Summary) Container {
	name := ""
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	return Container{
		Service: s.Labels[ServiceLabel],
		Name:    name,
		Image:   s.Image,
		State:   string(s.State),
		Status:  s.Status,
	}
}

func sortContainers(in []Container) {
	sort.Slice(in, func(i, j int) bool {
		if in[i].Service != in[j].Service {
			return in[i].Service < in[j].Service
		}
		return in[i].Name < in[j].Name
	})
}

// Rows renders containers for a status table.
func Rows(in []Container) [][]string {
	rows := make([][]string, 0, len(in))
	for _, c := range in {
		rows = append(rows, []string{c.Service, c.Name, c.State, c.Status})
	}
	return rows
}
