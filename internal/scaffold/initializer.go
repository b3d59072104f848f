// Package scaffold creates the files of a new democrite project.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/democrite/internal/config"
	"github.com/dyluth/democrite/internal/templates"
)

//go:embed templates/*
var templatesFS embed.FS

// TemplatesFile is the board template file created next to democrite.yml.
const TemplatesFile = "templates.yml"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Template    string
	Permissions os.FileMode
}

var projectFiles = []FileInfo{
	{Path: config.DefaultPath, Template: "templates/democrite.yml.tmpl", Permissions: 0644},
	{Path: TemplatesFile, Template: "templates/templates.yml.tmpl", Permissions: 0644},
}

// Initialize creates democrite.yml and templates.yml in dir. With force, existing files
// are overwritten; otherwise they make Initialize fail.
func Initialize(dir string, force bool) error {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return err
		}
	}

	for _, f := range projectFiles {
		content, err := templatesFS.ReadFile(f.Template)
		if err != nil {
			return fmt.Errorf("failed to read %s template: %w", f.Path, err)
		}
		path := filepath.Join(dir, f.Path)
		if force {
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("⚠️  Overwriting existing %s...\n", f.Path)
			}
		}
		if err := os.WriteFile(path, content, f.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}

	return validateCreatedFiles(dir)
}

// validateCreatedFiles loads the written files the way the binaries will.
func validateCreatedFiles(dir string) error {
	cfg, err := config.Load(filepath.Join(dir, config.DefaultPath))
	if err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}
	if _, err := templates.LoadFile(filepath.Join(dir, cfg.Templates.Path)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", TemplatesFile, err)
	}
	return nil
}

// PrintSuccess prints the created files and the next steps.
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized democrite project!")
	fmt.Println("\nCreated:")
	for _, f := range projectFiles {
		fmt.Printf("  ✓ %s\n", f.Path)
	}
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'democrite store up' to start a local Redis")
	fmt.Println("  2. Edit templates.yml to describe your boards")
	fmt.Println("  3. Run 'democrite board get <name> articles' to create a board")
}
