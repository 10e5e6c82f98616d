// Command cloudvault-client is the reference CLI for the cloudvault
// session protocol: login, register, upload, download, and basic file/
// directory management.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"

	"github.com/deb2000-sudo/cloudvault/pkg/client"
)

var (
	serverAddr string
	username   string
	password   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func printError(err error) {
	if isTerminal() {
		colorstring.Fprintln(os.Stderr, "[red]error:[reset] "+err.Error())
		return
	}
	fmt.Fprintln(os.Stderr, "error: "+err.Error())
}

func printSuccess(msg string) {
	if isTerminal() {
		colorstring.Println("[green]" + msg + "[reset]")
		return
	}
	fmt.Println(msg)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cloudvault-client",
		Short: "Talk to a cloudvault server",
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "127.0.0.1:9000", "server address")
	root.PersistentFlags().StringVar(&username, "username", "", "account username")
	root.PersistentFlags().StringVar(&password, "password", "", "account password")

	root.AddCommand(
		newRegisterCmd(),
		newUploadCmd(),
		newDownloadCmd(),
		newLsCmd(),
		newMkdirCmd(),
		newMvCmd(),
		newRmCmd(),
	)
	return root
}

// dialAndLogin connects to serverAddr and logs in with username/password,
// the precondition every authenticated subcommand shares.
func dialAndLogin() (*client.Client, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("--username and --password are required")
	}
	c, err := client.Dial(serverAddr)
	if err != nil {
		return nil, err
	}
	if err := c.Login(username, password); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func newRegisterCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			c, err := client.Dial(serverAddr)
			if err != nil {
				return err
			}
			defer c.Close()

			userID, err := c.CreateAccount(username, password, email)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("account created: %s (%s)", username, userID))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newUploadCmd() *cobra.Command {
	var directoryID, contentType string
	cmd := &cobra.Command{
		Use:   "upload [local-path]",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialAndLogin()
			if err != nil {
				return err
			}
			defer c.Close()

			fileID, err := c.Upload(args[0], directoryID, contentType, isTerminal())
			if err != nil {
				return err
			}

			info, statErr := os.Stat(args[0])
			if statErr == nil {
				sum, sumErr := hashFileSHA256(args[0])
				if sumErr == nil {
					fmt.Printf("local sha256: %s (%s)\n", sum, humanBytes(info.Size()))
				}
			}
			printSuccess(fmt.Sprintf("uploaded: %s", fileID))
			return nil
		},
	}
	cmd.Flags().StringVar(&directoryID, "dir", "", "destination directory id (default: root)")
	cmd.Flags().StringVar(&contentType, "content-type", "application/octet-stream", "MIME content type")
	return cmd
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [file-id] [local-path]",
		Short: "Download a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialAndLogin()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Download(args[0], args[1], isTerminal()); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("downloaded to %s", args[1]))
			return nil
		},
	}
	return cmd
}

func newLsCmd() *cobra.Command {
	var directoryID string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List files in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialAndLogin()
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.DirectoryContents(directoryID)
			if err != nil {
				return err
			}
			fmt.Println(string(resp.Payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&directoryID, "dir", "", "directory id (default: root)")
	return cmd
}

func newMkdirCmd() *cobra.Command {
	var parentID string
	cmd := &cobra.Command{
		Use:   "mkdir [name]",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialAndLogin()
			if err != nil {
				return err
			}
			defer c.Close()

			if _, err := c.Mkdir(args[0], parentID); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("created directory %q", args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&parentID, "parent", "", "parent directory id (default: root)")
	return cmd
}

func newMvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv [file-id] [target-directory-id]",
		Short: "Move a file into another directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialAndLogin()
			if err != nil {
				return err
			}
			defer c.Close()

			if _, err := c.MoveFile(args[0], args[1]); err != nil {
				return err
			}
			printSuccess("moved")
			return nil
		},
	}
	return cmd
}

func newRmCmd() *cobra.Command {
	var isDir bool
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialAndLogin()
			if err != nil {
				return err
			}
			defer c.Close()

			if isDir {
				_, err = c.Rmdir(args[0], recursive)
			} else {
				_, err = c.DeleteFile(args[0])
			}
			if err != nil {
				return err
			}
			printSuccess("deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&isDir, "dir", false, "delete a directory instead of a file")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "delete a non-empty directory and its contents")
	return cmd
}
