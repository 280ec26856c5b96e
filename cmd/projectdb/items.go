package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"projectdb-go/internal/app"
	"projectdb-go/internal/projectdb"

	"github.com/spf13/cobra"
)

// domain command
var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage domains",
}

var domainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List domains",
	RunE: withApp("domain list", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		domains, err := a.Service().ListDomains(ctx)
		if err != nil {
			return err
		}
		if len(domains) == 0 {
			fmt.Println("No domains.")
			return nil
		}
		for _, d := range domains {
			fmt.Println(d)
		}
		return nil
	}),
}

var domainAddCmd = &cobra.Command{
	Use:   "add DOMAIN",
	Short: "Create a domain",
	Args:  cobra.ExactArgs(1),
	RunE: withApp("domain add", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		if err := a.Service().AddDomain(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Domain %s ready\n", args[0])
		return nil
	}),
}

// item command
var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage stored items",
}

var itemListCmd = &cobra.Command{
	Use:   "list DOMAIN",
	Short: "List the items of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: withApp("item list", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		types, _ := cmd.Flags().GetStringSlice("type")
		name, _ := cmd.Flags().GetString("name")

		var (
			rows []projectdb.ItemSummary
			err  error
		)
		if name != "" {
			if len(types) != 1 {
				return fmt.Errorf("--name needs exactly one --type")
			}
			rows, err = a.Service().ListNamedItems(ctx, args[0], types[0], name)
		} else {
			rows, err = a.Service().ListItems(ctx, args[0], types)
		}
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Println("No items found.")
			return nil
		}
		for _, r := range rows {
			trashed := ""
			if r.IsTrashed == "true" {
				trashed = "  [trashed]"
			}
			fmt.Printf("%-15s  %s  %s  %s%s\n", r.ItemType, r.UUID, r.Date, r.SimpleName, trashed)
		}
		return nil
	}),
}

var itemLoadCmd = &cobra.Command{
	Use:   "load DOMAIN UUID...",
	Short: "Print stored envelopes",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp("item load", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		itemType, _ := cmd.Flags().GetString("type")
		outDir, _ := cmd.Flags().GetString("output")

		items, err := a.Service().LoadItems(ctx, args[0], args[1:], itemType)
		if err != nil {
			return err
		}
		for _, it := range items {
			if outDir == "" {
				fmt.Println(it.XML)
				continue
			}
			path := filepath.Join(outDir, it.UUID+".xml")
			if err := os.WriteFile(path, []byte(it.XML), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Printf("Wrote %s\n", path)
		}
		return nil
	}),
}

var itemSaveCmd = &cobra.Command{
	Use:   "save DOMAIN FILE...",
	Short: "Store envelopes read from files",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp("item save", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		for _, path := range args[1:] {
			res, err := a.SaveFile(ctx, args[0], path, overwrite)
			if err != nil {
				return err
			}
			fmt.Printf("Saved %s  %s\n", res.UUID, res.Date)
		}
		return nil
	}),
}

var itemNewCmd = &cobra.Command{
	Use:   "new DOMAIN TYPE NAME",
	Short: "Create an empty item",
	Args:  cobra.ExactArgs(3),
	RunE: withApp("item new", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		res, err := a.Service().NewItem(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Created %s %s\n", args[1], res.UUID)
		return nil
	}),
}

// attributeCmd builds a command that sets one attribute. value returns
// the new value from the positional arguments after DOMAIN TYPE UUID.
func attributeCmd(use, short, attr string, extra int, value func(args []string) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(3 + extra),
		RunE: withApp("item "+attr, func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			update := projectdb.AttributeUpdate{
				Domain:    args[0],
				ItemType:  args[1],
				UUID:      args[2],
				AttrName:  attr,
				AttrValue: value(args[3:]),
			}
			if _, err := a.Service().UpdateAttributes(ctx, []projectdb.AttributeUpdate{update}); err != nil {
				return err
			}
			fmt.Printf("Set %s of %s to %q\n", attr, update.UUID, update.AttrValue)
			return nil
		}),
	}
}

var (
	itemTrashCmd = attributeCmd("trash DOMAIN TYPE UUID", "Mark an item as trashed",
		projectdb.AttrIsTrashed, 0, func([]string) string { return "true" })
	itemRestoreCmd = attributeCmd("restore DOMAIN TYPE UUID", "Clear the trashed flag of an item",
		projectdb.AttrIsTrashed, 0, func([]string) string { return "false" })
	itemRenameCmd = attributeCmd("rename DOMAIN TYPE UUID NAME", "Rename an item",
		projectdb.AttrSimpleName, 1, func(rest []string) string { return rest[0] })
	itemDescribeCmd = attributeCmd("describe DOMAIN TYPE UUID TEXT", "Set the description of a project",
		projectdb.AttrDescription, 1, func(rest []string) string { return rest[0] })
)

func init() {
	domainCmd.AddCommand(domainListCmd)
	domainCmd.AddCommand(domainAddCmd)

	itemCmd.AddCommand(itemListCmd)
	itemListCmd.Flags().StringSliceP("type", "t", nil, "Item types to list (default all)")
	itemListCmd.Flags().StringP("name", "n", "", "Only items with exactly this name")
	itemCmd.AddCommand(itemLoadCmd)
	itemLoadCmd.Flags().StringP("type", "t", "", "Item type of every UUID")
	itemLoadCmd.Flags().StringP("output", "o", "", "Write each envelope to DIR/UUID.xml")
	itemCmd.AddCommand(itemSaveCmd)
	itemSaveCmd.Flags().Bool("overwrite", false, "Skip the modification date check")
	itemCmd.AddCommand(itemNewCmd)
	itemCmd.AddCommand(itemTrashCmd)
	itemCmd.AddCommand(itemRestoreCmd)
	itemCmd.AddCommand(itemRenameCmd)
	itemCmd.AddCommand(itemDescribeCmd)
}
