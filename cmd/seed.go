/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/evotar/apiserver/internal/server"
	"github.com/evotar/apiserver/internal/services"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// SeedFile lists reference data and bootstrap accounts.
type SeedFile struct {
	Departments   []string           `yaml:"departments"`
	ElectionTypes []SeedElectionType `yaml:"election_types"`
	Users         []SeedUser         `yaml:"users"`
}

type SeedElectionType struct {
	Name      string   `yaml:"name"`
	Strategy  string   `yaml:"strategy"`
	Positions []string `yaml:"positions"`
}

type SeedUser struct {
	StudentID  string `yaml:"student_id"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	Role       string `yaml:"role"`
	Department string `yaml:"department"`
}

type seedLookups interface {
	ListDepartments(ctx context.Context) ([]types.Department, error)
	CreateDepartment(ctx context.Context, actor session.Session, name string) (types.Department, error)
	ListElectionTypes(ctx context.Context) ([]types.ElectionType, error)
	CreateElectionType(ctx context.Context, actor session.Session, in types.ElectionType) (types.ElectionType, error)
	CreatePosition(ctx context.Context, actor session.Session, in types.Position) (types.Position, error)
}

type seedUsers interface {
	CreateUser(ctx context.Context, actor session.Session, in services.UserInput) (types.User, error)
}

// seedActor is the administrator identity used for seeding. It has no user
// id, so the resulting system log rows are not attributed to anyone.
var seedActor = session.Session{IsLoggedIn: true, Role: types.RoleAdmin}

var seedFilePath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create departments, election types, positions and accounts from a YAML file",
	Long: `Seed is idempotent: departments, election types and positions that
already exist by name are skipped, as are users whose student id or email is
taken.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedFilePath == "" {
			return errors.New("--file is required")
		}
		file, err := loadSeedFile(seedFilePath)
		if err != nil {
			return err
		}

		cfg := loadConfig()
		app, err := server.NewApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()
		defer app.Sink.Flush(context.WithoutCancel(cmd.Context()))

		return applySeed(cmd.Context(), cmd.OutOrStdout(), file, app.Lookups, app.Users)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedFilePath, "file", "f", "", "Path to the seed YAML file")
}

func loadSeedFile(path string) (SeedFile, error) {
	var file SeedFile
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return file, fmt.Errorf("failed to read seed file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return file, nil
}

func applySeed(ctx context.Context, out io.Writer, file SeedFile, lookups seedLookups, users seedUsers) error {
	existing, err := lookups.ListDepartments(ctx)
	if err != nil {
		return err
	}
	departments := make(map[string]int, len(existing))
	for _, d := range existing {
		departments[strings.ToLower(d.Name)] = d.ID
	}
	for _, name := range file.Departments {
		if _, ok := departments[strings.ToLower(strings.TrimSpace(name))]; ok {
			continue
		}
		d, err := lookups.CreateDepartment(ctx, seedActor, name)
		if err != nil {
			return fmt.Errorf("department %q: %w", name, err)
		}
		departments[strings.ToLower(d.Name)] = d.ID
		fmt.Fprintf(out, "created department %q\n", d.Name)
	}

	electionTypes, err := lookups.ListElectionTypes(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]types.ElectionType, len(electionTypes))
	for _, et := range electionTypes {
		byName[strings.ToLower(et.Name)] = et
	}
	for _, entry := range file.ElectionTypes {
		et, ok := byName[strings.ToLower(strings.TrimSpace(entry.Name))]
		if !ok {
			et, err = lookups.CreateElectionType(ctx, seedActor, types.ElectionType{Name: entry.Name, Strategy: entry.Strategy})
			if err != nil {
				return fmt.Errorf("election type %q: %w", entry.Name, err)
			}
			fmt.Fprintf(out, "created election type %q (%s)\n", et.Name, et.Strategy)
		}

		have := make(map[string]bool, len(et.Positions))
		for _, p := range et.Positions {
			have[strings.ToLower(p.Name)] = true
		}
		for i, name := range entry.Positions {
			if have[strings.ToLower(strings.TrimSpace(name))] {
				continue
			}
			p, err := lookups.CreatePosition(ctx, seedActor, types.Position{ElectionTypeID: et.ID, Name: name, DisplayOrder: i + 1})
			if err != nil {
				return fmt.Errorf("position %q: %w", name, err)
			}
			fmt.Fprintf(out, "created position %q for %q\n", p.Name, et.Name)
		}
	}

	for _, u := range file.Users {
		in := services.UserInput{
			StudentID: u.StudentID,
			Name:      u.Name,
			Email:     u.Email,
			Password:  u.Password,
			Role:      u.Role,
		}
		if u.Department != "" {
			id, ok := departments[strings.ToLower(strings.TrimSpace(u.Department))]
			if !ok {
				return fmt.Errorf("user %q: unknown department %q", u.StudentID, u.Department)
			}
			in.DepartmentID = &id
		}
		user, err := users.CreateUser(ctx, seedActor, in)
		if errors.Is(err, services.ErrUserExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("user %q: %w", u.StudentID, err)
		}
		fmt.Fprintf(out, "created %s %q\n", user.Role, user.StudentID)
	}
	return nil
}
