package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mediacrawl/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored platform credentials",
	Long: `Manage stored platform credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Environment variables (read-only fallback)

The cookie string is the value of the Cookie request header after logging
into the platform in a browser. Never share your credentials!`,
}

// authSetCmd represents the auth set command
var authSetCmd = &cobra.Command{
	Use:   "set <platform>",
	Short: "Store cookies for a platform",
	Long: `Store the cookie string for a platform in the system keychain.

To get the cookie string:
1. Log into the platform in your browser
2. Open Developer Tools (F12) and go to the Network tab
3. Copy the Cookie header from any authenticated request`,
	Example: `  # Store xhs cookies interactively
  mediacrawl auth set xhs`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

// authShowCmd represents the auth show command
var authShowCmd = &cobra.Command{
	Use:   "show <platform>",
	Short: "Show stored credentials for a platform",
	Long:  `Show the stored credentials for a platform with sensitive values masked.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthShow,
}

// authDeleteCmd represents the auth delete command
var authDeleteCmd = &cobra.Command{
	Use:   "delete <platform>",
	Short: "Remove stored credentials for a platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	platformName := strings.TrimSpace(args[0])

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Cookie string: ")
	cookies, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read cookie string: %w", err)
	}
	cookies = strings.TrimSpace(cookies)
	if cookies == "" {
		return fmt.Errorf("cookie string cannot be empty")
	}

	fmt.Print("Phone number (optional, for SMS login): ")
	phone, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read phone number: %w", err)
	}

	cred := &auth.Credential{
		Platform: platformName,
		Cookies:  cookies,
		Phone:    strings.TrimSpace(phone),
	}
	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	fmt.Printf("Credentials stored for %s\n", platformName)
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	platformName := strings.TrimSpace(args[0])

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	cred, err := manager.Retrieve(platformName)
	if err != nil {
		return err
	}

	safe := auth.SanitizeCredential(cred)
	fmt.Printf("Platform: %s\n", safe.Platform)
	fmt.Printf("Cookies:  %s\n", safe.Cookies)
	if safe.Phone != "" {
		fmt.Printf("Phone:    %s\n", safe.Phone)
	}
	if !safe.LastModified.IsZero() {
		fmt.Printf("Updated:  %s\n", safe.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	platformName := strings.TrimSpace(args[0])

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	if err := manager.Delete(platformName); err != nil {
		return err
	}

	fmt.Printf("Credentials removed for %s\n", platformName)
	return nil
}
