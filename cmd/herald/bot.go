package main

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/herald/pkg/client"
	"github.com/cuemby/herald/pkg/events"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Manage bots",
}

var botListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bots",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		bots, err := c.ListBots()
		if err != nil {
			return fmt.Errorf("failed to list bots: %v", err)
		}
		if len(bots) == 0 {
			fmt.Println("No bots")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tGAMERTAG\tXUID\tSERVER\tSTATUS\tFRIENDS")
		for _, b := range bots {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				b.ID, orDash(b.Gamertag), orDash(b.XUID), orDash(b.ServerID), b.Status, b.FriendCount)
		}
		return w.Flush()
	},
}

var botCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a bot and start it",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		id, err := c.CreateBot()
		if err != nil {
			return fmt.Errorf("failed to create bot: %v", err)
		}
		fmt.Printf("✓ Bot created: %s\n", id)
		return nil
	},
}

var botGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		b, err := c.GetBot(args[0])
		if err != nil {
			return fmt.Errorf("failed to get bot: %v", err)
		}
		fmt.Printf("ID:       %s\n", b.ID)
		fmt.Printf("Gamertag: %s\n", orDash(b.Gamertag))
		fmt.Printf("XUID:     %s\n", orDash(b.XUID))
		fmt.Printf("Server:   %s\n", orDash(b.ServerID))
		fmt.Printf("Status:   %s\n", b.Status)
		fmt.Printf("Friends:  %d\n", b.FriendCount)
		return nil
	},
}

var botUpdateCmd = &cobra.Command{
	Use:   "update ID --server SERVER_ID",
	Short: "Point a bot at another server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID, _ := cmd.Flags().GetString("server")

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.UpdateBot(args[0], serverID); err != nil {
			return fmt.Errorf("failed to update bot: %v", err)
		}
		fmt.Printf("✓ Bot %s now targets server %s\n", args[0], serverID)
		return nil
	},
}

// botActionCmd builds the start/stop/restart commands, which only queue work
func botActionCmd(action string, fn func(*client.Client, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: fmt.Sprintf("Queue a %s of a bot", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := fn(c, args[0]); err != nil {
				return fmt.Errorf("failed to %s bot: %v", action, err)
			}
			fmt.Printf("✓ Bot %s queued: %s\n", action, args[0])
			return nil
		},
	}
}

var botDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Stop and delete a bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteBot(args[0]); err != nil {
			return fmt.Errorf("failed to delete bot: %v", err)
		}
		fmt.Printf("✓ Bot deleted: %s\n", args[0])
		return nil
	},
}

var botLogsCmd = &cobra.Command{
	Use:   "logs ID",
	Short: "Print a bot's diagnostic log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		logs, err := c.BotLogs(args[0])
		if err != nil {
			return fmt.Errorf("failed to get logs: %v", err)
		}
		fmt.Print(logs)
		return nil
	},
}

var botSessionCmd = &cobra.Command{
	Use:   "session ID",
	Short: "Print a bot's current session document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		doc, err := c.BotSession(args[0])
		if err != nil {
			return fmt.Errorf("failed to get session: %v", err)
		}
		fmt.Println(string(doc))
		return nil
	},
}

var botFriendsCmd = &cobra.Command{
	Use:   "friends ID",
	Short: "List an online bot's friends",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		friends, err := c.Friends(args[0])
		if err != nil {
			return fmt.Errorf("failed to list friends: %v", err)
		}
		if len(friends) == 0 {
			fmt.Println("No friends")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "XUID\tGAMERTAG\tFOLLOWING\tFOLLOWER")
		for _, f := range friends {
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", f.XUID, f.Gamertag, f.Following, f.Follower)
		}
		return w.Flush()
	},
}

var botUnfollowCmd = &cobra.Command{
	Use:   "unfollow ID XUID",
	Short: "Remove a friend from an online bot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Unfollow(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to unfollow: %v", err)
		}
		fmt.Printf("✓ Unfollowed %s\n", args[1])
		return nil
	},
}

var botEventsCmd = &cobra.Command{
	Use:   "events [ID]",
	Short: "Stream lifecycle events",
	Long: `Stream lifecycle events until interrupted. With an ID only that
bot's events are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		botID := ""
		if len(args) == 1 {
			botID = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return c.WatchEvents(ctx, botID, func(ev *events.Event) {
			fmt.Printf("%s  %-22s %-36s %s\n",
				ev.Timestamp.Format("15:04:05"), ev.Type, orDash(ev.BotID), ev.Message)
		})
	},
}

func init() {
	botCmd.AddCommand(botListCmd)
	botCmd.AddCommand(botCreateCmd)
	botCmd.AddCommand(botGetCmd)
	botCmd.AddCommand(botUpdateCmd)
	botCmd.AddCommand(botActionCmd("start", (*client.Client).StartBot))
	botCmd.AddCommand(botActionCmd("stop", (*client.Client).StopBot))
	botCmd.AddCommand(botActionCmd("restart", (*client.Client).RestartBot))
	botCmd.AddCommand(botDeleteCmd)
	botCmd.AddCommand(botLogsCmd)
	botCmd.AddCommand(botSessionCmd)
	botCmd.AddCommand(botFriendsCmd)
	botCmd.AddCommand(botUnfollowCmd)
	botCmd.AddCommand(botEventsCmd)

	botUpdateCmd.Flags().String("server", "", "Target server ID (required)")
	_ = botUpdateCmd.MarkFlagRequired("server")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
