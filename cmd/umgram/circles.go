package main

import (
	"context"
	"fmt"
	"time"

	umgram "github.com/alhassansoft/umgram-go"
	"github.com/spf13/cobra"
)

var (
	circleName   string
	circleLat    float64
	circleLng    float64
	circleRadius float64
	nearbyLimit  int
)

func init() {
	circlesCreateCmd.Flags().StringVar(&circleName, "name", "", "Circle name")
	circlesCreateCmd.Flags().Float64Var(&circleLat, "lat", umgram.DefaultCenter.Lat, "Center latitude")
	circlesCreateCmd.Flags().Float64Var(&circleLng, "lng", umgram.DefaultCenter.Lng, "Center longitude")
	circlesCreateCmd.Flags().Float64Var(&circleRadius, "radius", umgram.DefaultRadius, "Radius in meters")

	circlesMoveCmd.Flags().Float64Var(&circleLat, "lat", 0, "New center latitude")
	circlesMoveCmd.Flags().Float64Var(&circleLng, "lng", 0, "New center longitude")
	circlesMoveCmd.MarkFlagRequired("lat")
	circlesMoveCmd.MarkFlagRequired("lng")

	circlesNearbyCmd.Flags().Float64Var(&circleLat, "lat", 0, "Latitude")
	circlesNearbyCmd.Flags().Float64Var(&circleLng, "lng", 0, "Longitude")
	circlesNearbyCmd.Flags().IntVar(&nearbyLimit, "limit", 20, "Maximum circles to return")

	circlesCmd.AddCommand(circlesListCmd)
	circlesCmd.AddCommand(circlesCreateCmd)
	circlesCmd.AddCommand(circlesMoveCmd)
	circlesCmd.AddCommand(circlesResizeCmd)
	circlesCmd.AddCommand(circlesRenameCmd)
	circlesCmd.AddCommand(circlesDeleteCmd)
	circlesCmd.AddCommand(circlesNearbyCmd)
	rootCmd.AddCommand(circlesCmd)
}

var circlesCmd = &cobra.Command{
	Use:   "circles",
	Short: "Manage geo circles",
	Long:  "Create, edit, and browse geo circles. Writes apply locally first and reach the server in the background; a failed server call never loses the local copy.",
}

// newSession builds a circle session backed by the configured snapshot store.
func newSession(client *umgram.Client, cfg *Config) *umgram.CircleSession {
	return umgram.NewCircleSession(client.Geo(), getSnapshotStore(cfg), nil)
}

var circlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your circles",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()
		session := newSession(client, cfg)
		defer session.Close()

		if err := session.Load(context.Background()); err != nil {
			fmt.Printf("Server unreachable, showing local snapshot (%v)\n", err)
		}
		circles := session.Circles()
		if len(circles) == 0 {
			fmt.Println("No circles.")
			return nil
		}
		for _, c := range circles {
			marker := ""
			if !c.ID.Confirmed() {
				marker = " (not yet synced)"
			}
			fmt.Printf("%-20s %-15s %.4f,%.4f r=%.0fm%s\n", c.ID.String(), c.Name, c.Center.Lat, c.Center.Lng, c.Radius, marker)
		}
		return nil
	},
}

var circlesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a circle",
	Long:  "Create a circle at the given position. The circle is saved locally at once; if the server is unreachable it stays in the snapshot under a temporary id.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()
		session := newSession(client, cfg)
		defer session.Close()

		done := make(chan string, 2)
		session.On(umgram.EventCircleConfirmed, func(_ string, data map[string]interface{}) {
			done <- data["id"].(string)
		})
		session.On(umgram.EventPersistFailed, func(_ string, data map[string]interface{}) {
			if data["op"] == "create" {
				done <- ""
			}
		})

		c := session.Create(circleName, umgram.LatLng{Lat: circleLat, Lng: circleLng}, circleRadius)

		select {
		case id := <-done:
			if id == "" {
				fmt.Printf("Saved locally as %s; server sync failed, it will remain in the snapshot.\n", c.ID.String())
				return nil
			}
			fmt.Printf("Created circle %s\n", id)
		case <-time.After(15 * time.Second):
			fmt.Printf("Saved locally as %s; still waiting for the server.\n", c.ID.String())
		}
		return nil
	},
}

// refreshSnapshot re-syncs the local snapshot after a direct server write.
func refreshSnapshot(client *umgram.Client, cfg *Config) {
	session := newSession(client, cfg)
	defer session.Close()
	session.Load(context.Background())
}

var circlesMoveCmd = &cobra.Command{
	Use:   "move <id>",
	Short: "Move a circle's center",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()
		err := client.Geo().Patch(context.Background(), args[0], &umgram.CirclePatch{
			Lat: umgram.Float(circleLat),
			Lng: umgram.Float(circleLng),
		})
		if err != nil {
			return err
		}
		refreshSnapshot(client, cfg)
		fmt.Printf("Moved circle %s to %.4f,%.4f\n", args[0], circleLat, circleLng)
		return nil
	},
}

var circlesResizeCmd = &cobra.Command{
	Use:   "resize <id> <radius-meters>",
	Short: "Resize a circle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var radius float64
		if _, err := fmt.Sscanf(args[1], "%f", &radius); err != nil {
			return fmt.Errorf("invalid radius %q", args[1])
		}
		if radius < umgram.MinRadius {
			radius = umgram.MinRadius
		}
		if radius > umgram.MaxRadius {
			radius = umgram.MaxRadius
		}

		client, cfg := getAuthedClient()
		err := client.Geo().Patch(context.Background(), args[0], &umgram.CirclePatch{
			Radius: umgram.Float(radius),
		})
		if err != nil {
			return err
		}
		refreshSnapshot(client, cfg)
		fmt.Printf("Resized circle %s to %.0fm\n", args[0], radius)
		return nil
	},
}

var circlesRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a circle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()
		err := client.Geo().Patch(context.Background(), args[0], &umgram.CirclePatch{
			Name: umgram.Str(args[1]),
		})
		if err != nil {
			return err
		}
		refreshSnapshot(client, cfg)
		fmt.Printf("Renamed circle %s to %q\n", args[0], args[1])
		return nil
	},
}

var circlesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a circle",
	Long:  "Delete a circle by id. A circle that never reached the server (temporary id) is removed from the local snapshot only.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()
		session := newSession(client, cfg)
		defer session.Close()
		session.Load(context.Background())

		var target umgram.CircleID
		for _, c := range session.Circles() {
			if c.ID.String() == args[0] {
				target = c.ID
			}
		}
		if target.IsZero() {
			return fmt.Errorf("no circle with id %s", args[0])
		}

		if !target.Confirmed() {
			session.Delete(target)
			fmt.Printf("Removed unsynced circle %s from the local snapshot.\n", args[0])
			return nil
		}

		if err := client.Geo().Delete(context.Background(), args[0]); err != nil {
			return err
		}
		refreshSnapshot(client, cfg)
		fmt.Printf("Deleted circle %s\n", args[0])
		return nil
	},
}

var circlesNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List circles covering a position",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		pos := umgram.LatLng{Lat: circleLat, Lng: circleLng}
		if pos.Lat == 0 && pos.Lng == 0 {
			pos = lastPosition(cfg)
		}

		rows, err := client.Geo().Nearby(context.Background(), pos, nearbyLimit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No circles here.")
			return nil
		}
		for _, c := range rows {
			owner := c.OwnerDisplayName
			if owner == "" {
				owner = c.OwnerUsername
			}
			fmt.Printf("%-8s %-15s %.4f,%.4f r=%.0fm  by %s\n", c.ID.String(), c.Name, c.Lat, c.Lng, c.Radius, owner)
		}
		return nil
	},
}
