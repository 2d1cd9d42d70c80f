package main

import (
	"context"
	"fmt"

	umgram "github.com/alhassansoft/umgram-go"
	"github.com/spf13/cobra"
)

var (
	searchDomain string
	searchLimit  int
	searchAnswer bool
)

func init() {
	searchCmd.Flags().StringVar(&searchDomain, "domain", "", "Restrict to a content type: chat, note, microblog")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum hits")
	searchCmd.Flags().BoolVar(&searchAnswer, "answer", false, "Ask for a direct answer instead of hits")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search your content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := umgram.SearchDomain(searchDomain)
		switch domain {
		case umgram.SearchAll, umgram.SearchChat, umgram.SearchNote, umgram.SearchMicroblog:
		default:
			return fmt.Errorf("unknown domain %q", searchDomain)
		}

		client, _ := getAuthedClient()

		if searchAnswer {
			res, err := client.Search().Answer(context.Background(), domain, args[0])
			if err != nil {
				return err
			}
			fmt.Println(res.Answer)
			return nil
		}

		hits, err := client.Search().Query(context.Background(), domain, args[0], searchLimit)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for _, h := range hits {
			fmt.Printf("%-10s %s\n", h.Kind, h.Text)
		}
		return nil
	},
}
