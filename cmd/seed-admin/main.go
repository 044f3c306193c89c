// seed-admin bootstraps a fresh register: it creates the branch row (when
// POS_BRANCH_ID does not exist yet) and an admin user with a known PIN.
//
// Usage:
//   POS_DB_PATH=... POS_BRANCH_ID=... SEED_ADMIN_PIN=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/models"
)

const defaultAdminName = "Store Admin"

func main() {
	ctx := context.Background()
	config.ConnectDatabase()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set POS_DB_PATH.")
		os.Exit(1)
	}
	models.MigrateTable()

	branchId := strings.TrimSpace(os.Getenv("POS_BRANCH_ID"))
	branchName := strings.TrimSpace(os.Getenv("SEED_BRANCH_NAME"))
	if branchName == "" {
		branchName = "Main Store"
	}

	if branchId != "" {
		if _, err := models.GetBranch(ctx, branchId); err == models.ErrNotFound {
			fmt.Fprintf(os.Stderr, "branch %s not found; create it through the API of the central store first\n", branchId)
			os.Exit(2)
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "failed to look up branch: %v\n", err)
			os.Exit(1)
		}
	} else {
		branch, err := models.CreateBranch(ctx, &models.NewBranch{Name: branchName})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create branch: %v\n", err)
			os.Exit(1)
		}
		branchId = branch.ID
		fmt.Printf("created branch %s (%s); set POS_BRANCH_ID=%s on this register\n", branch.Name, branch.ID, branch.ID)
	}

	pin := strings.TrimSpace(os.Getenv("SEED_ADMIN_PIN"))
	if pin == "" {
		pin = "0000"
	}
	name := strings.TrimSpace(os.Getenv("SEED_ADMIN_NAME"))
	if name == "" {
		name = defaultAdminName
	}

	users, err := models.ListUsers(ctx, branchId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list users: %v\n", err)
		os.Exit(1)
	}
	for _, u := range users {
		if u.Role == models.UserRoleAdmin {
			fmt.Printf("admin user already exists (%s, id %s); nothing to do\n", u.Name, u.ID)
			return
		}
	}

	session := models.Session{BranchId: branchId}
	user, err := models.CreateUser(ctx, session, &models.NewUser{
		Name: name,
		Role: models.UserRoleAdmin,
		Pin:  pin,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created admin user %s (id %s)\n", user.Name, user.ID)
}
