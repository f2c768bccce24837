package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/herald/pkg/api"
	"github.com/cuemby/herald/pkg/types"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage game servers",
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		servers, err := c.ListServers()
		if err != nil {
			return fmt.Errorf("failed to list servers: %v", err)
		}
		if len(servers) == 0 {
			fmt.Println("No servers")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tADDRESS\tWORLD\tPLAYERS\tUPDATED")
		for _, s := range servers {
			fmt.Fprintf(w, "%s\t%s:%d\t%s\t%d/%d\t%s\n",
				s.ID, s.Hostname, s.Port, orDash(s.SessionInfo.WorldName),
				s.SessionInfo.Players, s.SessionInfo.MaxPlayers,
				s.LastUpdated.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var serverGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		s, err := c.GetServer(args[0])
		if err != nil {
			return fmt.Errorf("failed to get server: %v", err)
		}
		printServer(s)
		return nil
	},
}

var serverCreateCmd = &cobra.Command{
	Use:   "create --hostname HOST --port PORT",
	Short: "Add a game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		s, err := c.CreateServer(serverRequestFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("failed to create server: %v", err)
		}
		fmt.Printf("✓ Server created: %s (%s:%d)\n", s.ID, s.Hostname, s.Port)
		return nil
	},
}

var serverUpdateCmd = &cobra.Command{
	Use:   "update ID --hostname HOST --port PORT",
	Short: "Replace a server's settings",
	Long: `Replace a server's settings. Every bot targeting the server
republishes its session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		s, err := c.UpdateServer(args[0], serverRequestFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("failed to update server: %v", err)
		}
		fmt.Printf("✓ Server updated: %s (%s:%d)\n", s.ID, s.Hostname, s.Port)
		return nil
	},
}

var serverDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a server no bot targets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteServer(args[0]); err != nil {
			return fmt.Errorf("failed to delete server: %v", err)
		}
		fmt.Printf("✓ Server deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	serverCmd.AddCommand(serverListCmd)
	serverCmd.AddCommand(serverGetCmd)
	serverCmd.AddCommand(serverCreateCmd)
	serverCmd.AddCommand(serverUpdateCmd)
	serverCmd.AddCommand(serverDeleteCmd)
	serverCmd.AddCommand(applyCmd)

	for _, cmd := range []*cobra.Command{serverCreateCmd, serverUpdateCmd} {
		cmd.Flags().String("hostname", "", "Server hostname or IP (required)")
		cmd.Flags().Int("port", 19132, "Server port")
		cmd.Flags().String("host-name", "", "Advertised host name")
		cmd.Flags().String("world", "", "Advertised world name")
		cmd.Flags().String("game-version", "", "Advertised game version")
		cmd.Flags().Int("protocol", 0, "Advertised protocol number")
		cmd.Flags().Int("players", 0, "Advertised player count")
		cmd.Flags().Int("max-players", 0, "Advertised maximum player count")
		_ = cmd.MarkFlagRequired("hostname")
	}
}

func serverRequestFromFlags(cmd *cobra.Command) api.ServerRequest {
	flags := cmd.Flags()
	hostname, _ := flags.GetString("hostname")
	port, _ := flags.GetInt("port")
	hostName, _ := flags.GetString("host-name")
	world, _ := flags.GetString("world")
	version, _ := flags.GetString("game-version")
	protocol, _ := flags.GetInt("protocol")
	players, _ := flags.GetInt("players")
	maxPlayers, _ := flags.GetInt("max-players")

	return api.ServerRequest{
		Hostname: hostname,
		Port:     port,
		SessionInfo: types.SessionInfo{
			HostName:   hostName,
			WorldName:  world,
			Version:    version,
			Protocol:   protocol,
			Players:    players,
			MaxPlayers: maxPlayers,
		},
	}
}

func printServer(s *types.Server) {
	fmt.Printf("ID:          %s\n", s.ID)
	fmt.Printf("Address:     %s:%d\n", s.Hostname, s.Port)
	fmt.Printf("Host name:   %s\n", orDash(s.SessionInfo.HostName))
	fmt.Printf("World:       %s\n", orDash(s.SessionInfo.WorldName))
	fmt.Printf("Version:     %s (protocol %d)\n", orDash(s.SessionInfo.Version), s.SessionInfo.Protocol)
	fmt.Printf("Players:     %d/%d\n", s.SessionInfo.Players, s.SessionInfo.MaxPlayers)
	fmt.Printf("Updated:     %s\n", s.LastUpdated.Format("2006-01-02 15:04:05"))
}
