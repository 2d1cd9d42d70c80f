package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	umgram "github.com/alhassansoft/umgram-go"
	"github.com/spf13/cobra"
)

var (
	loginPassword       string
	registerEmail       string
	registerPassword    string
	registerDisplayName string
)

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Password (prompted when omitted)")
	registerCmd.Flags().StringVar(&registerDisplayName, "display-name", "", "Public display name")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(logoutCmd)
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("cannot read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var loginCmd = &cobra.Command{
	Use:   "login <identifier>",
	Short: "Log in with an email or username",
	Long:  "Authenticate against the umgram backend and store the access token in ~/.umgram/config.toml.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			var err error
			password, err = promptLine("Password: ")
			if err != nil {
				return err
			}
		}

		client, cfg := getClient()
		res, err := client.Auth().Login(context.Background(), args[0], password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if res.AccessToken == "" {
			return fmt.Errorf("login response carried no token")
		}

		cfg.Auth.Token = res.AccessToken
		if res.User != nil {
			cfg.Auth.UserID = res.User.ID
			cfg.Auth.Username = res.User.Username
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Logged in as %s\n", cfg.Auth.Username)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if registerEmail == "" {
			return fmt.Errorf("--email is required")
		}
		password := registerPassword
		if password == "" {
			var err error
			password, err = promptLine("Password: ")
			if err != nil {
				return err
			}
		}

		client, cfg := getClient()
		res, err := client.Auth().Register(context.Background(), &umgram.RegisterOptions{
			Username:    args[0],
			Email:       registerEmail,
			Password:    password,
			DisplayName: registerDisplayName,
		})
		if err != nil {
			return fmt.Errorf("register failed: %w", err)
		}

		if res.AccessToken != "" {
			cfg.Auth.Token = res.AccessToken
			if res.User != nil {
				cfg.Auth.UserID = res.User.ID
				cfg.Auth.Username = res.User.Username
			}
			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
		}
		fmt.Printf("Registered %s\n", args[0])
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getAuthedClient()
		me, err := client.Auth().Me(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", me.Username, me.ID)
		if me.DisplayName != "" {
			fmt.Printf("Display name: %s\n", me.DisplayName)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}
