package cli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pilot/internal/config"
	"pilot/internal/skills"
)

// NewSkillCmd creates the skill management command.
func NewSkillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Manage skills",
		Long: `Manage Pilot skills.

Skills are SKILL.md files that expose shell or JavaScript commands to the
model as callable tools.`,
	}

	cmd.AddCommand(newSkillListCmd())
	cmd.AddCommand(newSkillShowCmd())
	cmd.AddCommand(newSkillCheckCmd())

	return cmd
}

func skillsManager(cmd *cobra.Command) (*skills.Manager, error) {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return nil, fmt.Errorf("CLI context not initialized")
	}

	dir := cliCtx.Config.Skills.Dir
	if dir == "" {
		var err error
		dir, err = config.DefaultSkillsDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine skills dir: %w", err)
		}
	}

	manager := skills.NewManager(dir)
	if err := manager.LoadAll(); err != nil {
		return nil, fmt.Errorf("failed to load skills from %s: %w", dir, err)
	}
	return manager, nil
}

func newSkillListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all available skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := skillsManager(cmd)
			if err != nil {
				return err
			}

			skillList := manager.List()

			if jsonOutput {
				data, _ := json.MarshalIndent(skillList, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(skillList) == 0 {
				fmt.Printf("No skills found in %s\n", manager.Dir())
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tNAME\tVERSION\tRUNTIME\tDESCRIPTION")
			for _, s := range skillList {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ToolName(), s.Name, s.Version, s.Runtime, s.Description)
			}
			w.Flush()

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}

func newSkillCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate all SKILL.md files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}

			dir := cliCtx.Config.Skills.Dir
			if dir == "" {
				var err error
				dir, err = config.DefaultSkillsDir()
				if err != nil {
					return fmt.Errorf("failed to determine skills dir: %w", err)
				}
			}

			var checked, failed int
			err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || d.Name() != "SKILL.md" {
					return nil
				}
				checked++
				if _, perr := skills.ParseSkillMD(path); perr != nil {
					failed++
					fmt.Printf("✗ %s: %v\n", path, perr)
				} else {
					fmt.Printf("✓ %s\n", path)
				}
				return nil
			})
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Printf("No skills directory at %s\n", dir)
					return nil
				}
				return fmt.Errorf("walk skills dir: %w", err)
			}

			if checked == 0 {
				fmt.Printf("No SKILL.md files found in %s\n", dir)
				return nil
			}
			fmt.Printf("\n%d checked, %d invalid\n", checked, failed)
			if failed > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func newSkillShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tool-name>",
		Short: "Show skill details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := skillsManager(cmd)
			if err != nil {
				return err
			}

			skill, found := manager.Get(args[0])
			if !found {
				return fmt.Errorf("skill not found: %s", args[0])
			}

			fmt.Printf("Name: %s\n", skill.Name)
			fmt.Printf("Tool: %s\n", skill.ToolName())
			fmt.Printf("Version: %s\n", skill.Version)
			fmt.Printf("Runtime: %s\n", skill.Runtime)
			fmt.Printf("Description: %s\n", skill.Description)
			if skill.Author != "" {
				fmt.Printf("Author: %s\n", skill.Author)
			}
			fmt.Printf("Path: %s\n", skill.Path)

			if len(skill.Parameters) > 0 {
				fmt.Println("\nParameters:")
				for _, p := range skill.Parameters {
					required := ""
					if p.Required {
						required = " (required)"
					}
					fmt.Printf("  - %s%s: %s\n", p.Name, required, p.Description)
				}
			}

			if skill.Body != "" {
				fmt.Println("\nKnowledge:")
				fmt.Println(skill.Body)
			}

			return nil
		},
	}
}
