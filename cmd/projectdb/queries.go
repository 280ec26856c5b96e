package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"projectdb-go/internal/app"
	"projectdb-go/internal/projectdb"

	"github.com/spf13/cobra"
)

// device command
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Query device instances and configurations",
}

var deviceSearchCmd = &cobra.Command{
	Use:   "search DOMAIN PART",
	Short: "List configurations of devices whose id contains PART",
	Args:  cobra.ExactArgs(2),
	RunE: withApp("device search", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		rows, err := a.Service().ConfigurationsFromDeviceNamePart(ctx, args[0], args[1], !all)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No devices found.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%s  %s  %s\n", r.DeviceID, r.DeviceUUID, r.ConfigID)
		}
		return nil
	}),
}

var deviceConfigsCmd = &cobra.Command{
	Use:   "configs DOMAIN DEVICE_ID",
	Short: "Show the active configuration of every device named DEVICE_ID",
	Args:  cobra.ExactArgs(2),
	RunE: withApp("device configs", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		rows, err := a.Service().ConfigurationsFromDeviceName(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No active configurations.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%s  %s\n", r.InstanceID, r.ConfigID)
		}

		byProject, err := a.Service().ProjectsWithConf(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		names := make([]string, 0, len(byProject))
		for name := range byProject {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  in %s: %s\n", name, byProject[name])
		}
		return nil
	}),
}

var deviceProjectsCmd = &cobra.Command{
	Use:   "projects DOMAIN DEVICE_UUID",
	Short: "List the projects containing a device",
	Args:  cobra.ExactArgs(2),
	RunE: withApp("device projects", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		rows, err := a.Service().ProjectsDataFromDevice(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%s  %s  %s\n", r.UUID, r.Date, r.ProjectName)
		}
		return nil
	}),
}

var deviceListCmd = &cobra.Command{
	Use:   "list DOMAIN",
	Short: "List every device reachable from a project",
	Args:  cobra.ExactArgs(1),
	RunE: withApp("device list", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		rows, err := a.Service().DevicesFromDomain(ctx, args[0])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No devices found.")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%-30s  %s  %s\n", r.DeviceName, r.DeviceUUID, r.ProjectName)
		}
		return nil
	}),
}

var deviceActiveCmd = &cobra.Command{
	Use:   "active DOMAIN DEVICE_UUID",
	Short: "Print the active configuration of a device",
	Args:  cobra.ExactArgs(2),
	RunE: withApp("device active", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		item, err := a.Service().DeviceConfigFromDeviceUUID(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(item.XML)
		return nil
	}),
}

// projects command
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Find projects by their contents",
}

// projectSearch is one of the Service.ProjectsWith* methods.
type projectSearch func(*projectdb.Service, context.Context, string, string) ([]projectdb.ProjectItems, error)

func projectSearchCmd(use, short string, search projectSearch) *cobra.Command {
	return &cobra.Command{
		Use:   use + " DOMAIN PART",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: withApp("projects "+use, func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			rows, err := search(a.Service(), ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No projects found.")
				return nil
			}
			for _, r := range rows {
				fmt.Printf("%s  %s  %s\n", r.UUID, r.Date, r.ProjectName)
				fmt.Printf("    %s\n", strings.Join(r.Items, ", "))
			}
			return nil
		}),
	}
}

var (
	projectsWithDeviceCmd = projectSearchCmd("with-device",
		"Projects with a device whose id contains PART", (*projectdb.Service).ProjectsWithDevice)
	projectsWithMacroCmd = projectSearchCmd("with-macro",
		"Projects with a macro whose name contains PART", (*projectdb.Service).ProjectsWithMacro)
	projectsWithServerCmd = projectSearchCmd("with-server",
		"Projects with a server whose name contains PART", (*projectdb.Service).ProjectsWithServer)
)

// scene command
var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Inspect scenes",
}

var sceneLinksCmd = &cobra.Command{
	Use:   "links DOMAIN SCENE_UUID",
	Short: "List the scenes a scene links to",
	Args:  cobra.ExactArgs(2),
	RunE: withApp("scene links", func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		links, err := a.Service().SceneLinks(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if len(links) == 0 {
			fmt.Println("No scene links.")
			return nil
		}
		for _, l := range links {
			fmt.Println(l)
		}
		return nil
	}),
}

func init() {
	deviceCmd.AddCommand(deviceSearchCmd)
	deviceSearchCmd.Flags().BoolP("all", "a", false, "Include inactive configurations")
	deviceCmd.AddCommand(deviceConfigsCmd)
	deviceCmd.AddCommand(deviceProjectsCmd)
	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceActiveCmd)

	projectsCmd.AddCommand(projectsWithDeviceCmd)
	projectsCmd.AddCommand(projectsWithMacroCmd)
	projectsCmd.AddCommand(projectsWithServerCmd)

	sceneCmd.AddCommand(sceneLinksCmd)
}
