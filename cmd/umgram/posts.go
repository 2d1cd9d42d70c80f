package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	postsCmd.AddCommand(postsListCmd)
	postsCmd.AddCommand(postsNewCmd)
	rootCmd.AddCommand(postsCmd)
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Browse and write microblog posts",
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the public feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()
		posts, err := client.Microblog().Posts(context.Background())
		if err != nil {
			return err
		}
		for _, p := range posts {
			name := p.DisplayName
			if name == "" {
				name = p.Username
			}
			fmt.Printf("[%s] %s: %s\n", p.CreatedAt, name, p.Text)
		}
		return nil
	},
}

var postsNewCmd = &cobra.Command{
	Use:   "new <text>",
	Short: "Publish a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getAuthedClient()
		post, err := client.Microblog().Post(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Posted %s\n", post.ID)
		return nil
	},
}
