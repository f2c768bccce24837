package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/herald/pkg/api"
	"github.com/cuemby/herald/pkg/client"
	"github.com/cuemby/herald/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update servers from a YAML file",
	Long: `Create or update servers from a YAML file. A file may hold several
documents. A server whose hostname and port already exist is updated,
otherwise it is created.

Example:
  kind: Server
  spec:
    hostname: play.example.net
    port: 19132
    sessionInfo:
      worldName: Survival
      maxPlayers: 40

  herald server apply -f servers.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// ServerResource is one server document in an apply file
type ServerResource struct {
	Kind string     `yaml:"kind"`
	Spec ServerSpec `yaml:"spec"`
}

// ServerSpec mirrors the API server request
type ServerSpec struct {
	Hostname    string          `yaml:"hostname"`
	Port        int             `yaml:"port"`
	SessionInfo SessionInfoSpec `yaml:"sessionInfo"`
}

// SessionInfoSpec is the advertised session info of an apply document
type SessionInfoSpec struct {
	HostName   string `yaml:"hostName"`
	WorldName  string `yaml:"worldName"`
	Version    string `yaml:"version"`
	Protocol   int    `yaml:"protocol"`
	Players    int    `yaml:"players"`
	MaxPlayers int    `yaml:"maxPlayers"`
}

func (s ServerSpec) request() api.ServerRequest {
	return api.ServerRequest{
		Hostname: s.Hostname,
		Port:     s.Port,
		SessionInfo: types.SessionInfo{
			HostName:   s.SessionInfo.HostName,
			WorldName:  s.SessionInfo.WorldName,
			Version:    s.SessionInfo.Version,
			Protocol:   s.SessionInfo.Protocol,
			Players:    s.SessionInfo.Players,
			MaxPlayers: s.SessionInfo.MaxPlayers,
		},
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}
	defer f.Close()

	resources, err := parseResources(f)
	if err != nil {
		return err
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, res := range resources {
		if err := applyServer(c, res.Spec); err != nil {
			return err
		}
	}
	return nil
}

// parseResources reads every YAML document in r
func parseResources(r io.Reader) ([]ServerResource, error) {
	var resources []ServerResource
	dec := yaml.NewDecoder(r)
	for {
		var res ServerResource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %v", err)
		}
		if res.Kind != "Server" {
			return nil, fmt.Errorf("unsupported resource kind: %q", res.Kind)
		}
		if res.Spec.Hostname == "" {
			return nil, fmt.Errorf("server hostname is required")
		}
		if res.Spec.Port == 0 {
			res.Spec.Port = 19132
		}
		resources = append(resources, res)
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("no resources found")
	}
	return resources, nil
}

func applyServer(c *client.Client, spec ServerSpec) error {
	servers, err := c.ListServers()
	if err != nil {
		return fmt.Errorf("failed to list servers: %v", err)
	}

	for _, existing := range servers {
		if existing.Hostname == spec.Hostname && existing.Port == spec.Port {
			fmt.Printf("Updating server: %s:%d\n", spec.Hostname, spec.Port)
			if _, err := c.UpdateServer(existing.ID, spec.request()); err != nil {
				return fmt.Errorf("failed to update server: %v", err)
			}
			fmt.Printf("✓ Server updated: %s\n", existing.ID)
			return nil
		}
	}

	fmt.Printf("Creating server: %s:%d\n", spec.Hostname, spec.Port)
	server, err := c.CreateServer(spec.request())
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}
	fmt.Printf("✓ Server created: %s\n", server.ID)
	return nil
}
