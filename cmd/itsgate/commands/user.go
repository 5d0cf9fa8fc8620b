package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/shmkit/itsgate/internal/cli/output"
	"github.com/shmkit/itsgate/internal/cli/prompt"
	"github.com/shmkit/itsgate/pkg/config"
	"github.com/shmkit/itsgate/pkg/directory/models"
)

var userInstance string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Inspect directory accounts",
}

var userCheckCmd = &cobra.Command{
	Use:   "check <userid>",
	Short: "Verify an account's credentials and grants",
	Long: `Look a user up in the directory, verify the password interactively,
and show the grade, validity window, and granted project/structure ids.
This runs the same checks a protocol login would.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserCheck,
}

var userHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Generate a bcrypt password hash",
	Long: `Prompt for a password and print its bcrypt hash, for operators
inserting accounts into the directory by hand.`,
	RunE: runUserHash,
}

func init() {
	userCmd.PersistentFlags().StringVar(&userInstance, "instance", "1", "instance selector")
	userCmd.AddCommand(userCheckCmd)
	userCmd.AddCommand(userHashCmd)
}

func runUserCheck(cmd *cobra.Command, args []string) error {
	username := args[0]

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	st, err := openInstance(cfg, userInstance)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	user, err := st.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("user %s does not exist", username)
		}
		return err
	}

	password, err := prompt.Password("Password")
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.UserPW), []byte(password)) != nil {
		return fmt.Errorf("invalid password for %s", username)
	}

	pairs := [][2]string{
		{"userid", user.UserID},
		{"grade", string(user.Grade)},
	}
	if user.AuthStartDate != nil && user.AuthEndDate != nil {
		window := fmt.Sprintf("%s .. %s",
			user.AuthStartDate.Format("2006-01-02"),
			user.AuthEndDate.Format("2006-01-02"))
		status := "active"
		if !user.InWindow(time.Now()) {
			status = "expired"
		}
		pairs = append(pairs,
			[2]string{"window", window},
			[2]string{"window status", status})
	}

	if user.Grade.Limited() {
		ids, err := st.AuthorizedIDs(ctx, username)
		if err != nil {
			return err
		}
		grants := "(none)"
		if len(ids) > 0 {
			grants = strings.Join(ids, ", ")
		}
		pairs = append(pairs, [2]string{"grants", grants})
	}

	return output.SimpleTable(os.Stdout, pairs)
}

func runUserHash(cmd *cobra.Command, args []string) error {
	password, err := prompt.PasswordWithConfirmation("Password", "Confirm password", 4)
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}
