package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cinodeharvest/pkg/auth"
	"cinodeharvest/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Cinode access codes",
	Long: `Manage stored Cinode access codes.

Access codes are stored in the system keychain when available, otherwise in
an encrypted file (AES-GCM, PBKDF2 derived key). CINODE_ACCESS is read as a
credential named "default".`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an access code",
	Long: `Store a Cinode access code under a name.

The access code is created in Cinode under Administration > Integrations > API.
It is read without echo.`,
	Example: `  cinodeharvest auth login
  cinodeharvest auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored access code",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored access codes",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	name := auth.DefaultCredentialName
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	if manager.Exists(name) {
		fmt.Printf("Credential '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("Access code: ")
	accessCode, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read access code: %w", err)
	}
	if accessCode == "" {
		return fmt.Errorf("access code is required")
	}

	fmt.Print("Company id (Enter to use the configured one): ")
	input, _ := reader.ReadString('\n')
	var company int
	if input = strings.TrimSpace(input); input != "" {
		company, err = strconv.Atoi(input)
		if err != nil || company <= 0 {
			return fmt.Errorf("invalid company id %q", input)
		}
	}

	cred := &auth.Credential{
		Name:       name,
		AccessCode: accessCode,
		CompanyID:  company,
	}
	if err := manager.Store(cred); err != nil {
		return err
	}

	ui.PrintSuccess("Credential saved: " + name)
	if name != auth.DefaultCredentialName {
		ui.PrintInfo("Use it with", "cinodeharvest --account "+name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}

	ui.PrintSuccess("Credential removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintWarning("No stored credentials", "run 'cinodeharvest auth login'")
		return nil
	}

	ui.PrintHighlight("Stored credentials")
	for _, cred := range creds {
		safe := auth.SanitizeCredential(cred)
		company := "-"
		if safe.CompanyID > 0 {
			company = strconv.Itoa(safe.CompanyID)
		}
		ui.PrintInfo("  "+safe.Name, fmt.Sprintf("%s  company %s  updated %s",
			safe.AccessCode, company, safe.LastModified.Format("2006-01-02 15:04")))
	}
	return nil
}

// readSecret reads a line from stdin without echo when it is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
