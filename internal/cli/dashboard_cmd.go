package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/devdash/internal/dashboard"
	"github.com/hitoshi/devdash/internal/model"
)

func (a *app) listCommand() *cobra.Command {
	var (
		categoryRef string
		pending     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories and their items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())

			var err error
			a.orch.View(func(s *dashboard.Store) {
				cats := s.Categories()
				if categoryRef != "" {
					var c *model.Category
					c, err = findCategory(s, categoryRef)
					if err != nil {
						return
					}
					cats = []*model.Category{c}
				}
				for i, c := range cats {
					if i > 0 {
						fmt.Fprintln(p.w)
					}
					p.category(c)
					for _, it := range c.Items {
						if pending && it.Completed {
							continue
						}
						p.item(it)
					}
				}
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&categoryRef, "category", "c", "", "show a single category (id or name)")
	cmd.Flags().BoolVar(&pending, "pending", false, "hide completed items")
	return cmd
}

func (a *app) progressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show completion progress overall and per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			a.orch.View(func(s *dashboard.Store) {
				p.progressLine("Overall", s.Overall(), "")
				for _, c := range s.Categories() {
					p.progressLine(label(c), dashboard.CategoryProgress(c), c.Color)
				}
			})
			return nil
		},
	}
}

func (a *app) categoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage categories",
	}

	var icon, color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var created *model.Category
			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, err := s.AddCategory(args[0], icon, color)
				created = c
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added category %q (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	add.Flags().StringVar(&icon, "icon", "fas fa-folder", "icon class or emoji")
	add.Flags().StringVar(&color, "color", "blue", "accent color name or hex")

	rename := &cobra.Command{
		Use:   "rename <category> <new-name>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, err := findCategory(s, args[0])
				if err != nil {
					return err
				}
				return s.RenameCategory(c.ID, args[1])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed category to %q\n", strings.TrimSpace(args[1]))
			return nil
		},
	}

	rm := &cobra.Command{
		Use:     "rm <category>",
		Aliases: []string{"remove"},
		Short:   "Remove a category and all of its items",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed string
			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, err := findCategory(s, args[0])
				if err != nil {
					return err
				}
				removed = c.Name
				return s.RemoveCategory(c.ID)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed category %q\n", removed)
			return nil
		},
	}

	cmd.AddCommand(add, rename, rm)
	return cmd
}

func (a *app) itemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage items inside a category",
	}
	cmd.AddCommand(
		a.itemAddCommand(),
		a.itemQuickCommand(),
		a.itemToggleCommand(),
		a.itemRemoveCommand(),
		a.itemEditCommand(),
	)
	return cmd
}

func (a *app) itemAddCommand() *cobra.Command {
	var (
		titleText  string
		typ        string
		notes      string
		fetchTitle bool
	)
	cmd := &cobra.Command{
		Use:   "add <category> <url>",
		Short: "Add an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType := model.ItemType(strings.ToLower(typ))
			switch {
			case typ == "":
				itemType = dashboard.InferType(args[1])
			case !itemType.Valid():
				return fmt.Errorf("unknown item type %q", typ)
			}
			if titleText == "" {
				titleText = dashboard.ExtractTitle(args[1])
				fetchTitle = true
			}

			var created *model.Item
			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, err := findCategory(s, args[0])
				if err != nil {
					return err
				}
				created, err = s.AddItem(c.ID, dashboard.ItemInput{
					Title: titleText,
					URL:   args[1],
					Type:  itemType,
					Notes: notes,
				})
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q (%s)\n", created.Title, created.ID)
			if fetchTitle {
				a.scheduleTitle(cmd, created)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&titleText, "title", "t", "", "item title (derived from the URL when empty)")
	cmd.Flags().StringVar(&typ, "type", "", "youtube, course, book, website or other (inferred when empty)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "free-form notes")
	cmd.Flags().BoolVar(&fetchTitle, "fetch-title", false, "replace the title with the page title in the background")
	return cmd
}

func (a *app) itemQuickCommand() *cobra.Command {
	var noFetch bool
	cmd := &cobra.Command{
		Use:   "quick <category> <url>",
		Short: "Add an item from a URL alone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var created *model.Item
			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, err := findCategory(s, args[0])
				if err != nil {
					return err
				}
				created, err = s.QuickAddItem(c.ID, args[1])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q as %s (%s)\n", created.Title, created.Type, created.ID)
			if !noFetch {
				a.scheduleTitle(cmd, created)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noFetch, "no-fetch", false, "keep the title derived from the URL")
	return cmd
}

// scheduleTitle はページタイトルの取得を予約する。取得はコマンド終了前に待ち合わせる。
func (a *app) scheduleTitle(cmd *cobra.Command, it *model.Item) {
	if a.orch.ScheduleTitleFetch(cmd.Context(), it.ID, it.URL) {
		fmt.Fprintln(cmd.OutOrStdout(), "fetching page title...")
	}
}

func (a *app) itemToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <category> <item>",
		Short: "Mark an item completed or not completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var toggled *model.Item
			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, it, err := findCategoryItem(s, args[0], args[1])
				if err != nil {
					return err
				}
				toggled, err = s.ToggleItem(c.ID, it.ID)
				return err
			})
			if err != nil {
				return err
			}
			state := "not completed"
			if toggled.Completed {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q is now %s\n", toggled.Title, state)
			return nil
		},
	}
}

func (a *app) itemRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <category> <item>",
		Aliases: []string{"remove"},
		Short:   "Remove an item",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed string
			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, it, err := findCategoryItem(s, args[0], args[1])
				if err != nil {
					return err
				}
				removed = it.Title
				return s.RemoveItem(c.ID, it.ID)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", removed)
			return nil
		},
	}
}

func (a *app) itemEditCommand() *cobra.Command {
	var titleText, rawURL, typ, notes string
	cmd := &cobra.Command{
		Use:   "edit <category> <item>",
		Short: "Edit an item's title, URL, type or notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch dashboard.ItemPatch
			if flags.Changed("title") {
				patch.Title = &titleText
			}
			if flags.Changed("url") {
				patch.URL = &rawURL
			}
			if flags.Changed("type") {
				t := model.ItemType(strings.ToLower(typ))
				if !t.Valid() {
					return fmt.Errorf("unknown item type %q", typ)
				}
				patch.Type = &t
			}
			if flags.Changed("notes") {
				patch.Notes = &notes
			}
			if patch == (dashboard.ItemPatch{}) {
				return fmt.Errorf("nothing to change: set at least one of --title, --url, --type, --notes")
			}

			err := a.mutate(cmd.Context(), func(s *dashboard.Store) error {
				c, it, err := findCategoryItem(s, args[0], args[1])
				if err != nil {
					return err
				}
				return s.UpdateItem(c.ID, it.ID, patch)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "item updated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&titleText, "title", "t", "", "new title")
	cmd.Flags().StringVar(&rawURL, "url", "", "new URL")
	cmd.Flags().StringVar(&typ, "type", "", "new type")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "new notes")
	return cmd
}

func findCategoryItem(s *dashboard.Store, categoryRef, itemRef string) (*model.Category, *model.Item, error) {
	c, err := findCategory(s, categoryRef)
	if err != nil {
		return nil, nil, err
	}
	it, err := findItem(c, itemRef)
	if err != nil {
		return nil, nil, err
	}
	return c, it, nil
}
