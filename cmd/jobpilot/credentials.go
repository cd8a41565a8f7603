package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpilot/internal/credential"
	"github.com/amishk599/jobpilot/internal/model"
)

var (
	credService  string
	credUsername string
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage platform logins in the OS keyring",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <platform>",
	Short: "Store a login for a platform",
	Long:  "Stores a username and password for a platform such as linkedin or naukri. The password is read from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <platform>",
	Short: "Remove a stored login",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsDelete,
}

func init() {
	credentialsCmd.PersistentFlags().StringVar(&credService, "service", credential.DefaultKeyringService, "keyring service name")
	credentialsSetCmd.Flags().StringVarP(&credUsername, "username", "u", "", "login username or email (required)")
	_ = credentialsSetCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd)
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	platform := strings.ToLower(args[0])

	fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s (%s): ", platform, credUsername)
	password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && password == "" {
		return fmt.Errorf("reading password: %w", err)
	}

	kp := credential.NewKeyringProvider(credService, logger)
	if err := kp.Set(platform, model.Credential{Username: credUsername, Password: strings.TrimSpace(password)}); err != nil {
		logger.Error("failed to store credential", "platform", platform, "error", err)
		os.Exit(1)
	}
	logger.Info("credential stored", "platform", platform, "account", kp.Account(platform))
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	platform := strings.ToLower(args[0])

	kp := credential.NewKeyringProvider(credService, logger)
	if err := kp.Delete(platform); err != nil {
		logger.Error("failed to delete credential", "platform", platform, "error", err)
		os.Exit(1)
	}
	logger.Info("credential deleted", "platform", platform)
	return nil
}
