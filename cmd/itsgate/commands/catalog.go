package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shmkit/itsgate/internal/cli/output"
	"github.com/shmkit/itsgate/pkg/config"
	"github.com/shmkit/itsgate/pkg/directory/store"
)

var (
	catalogInstance  string
	catalogFormat    string
	catalogProject   string
	catalogStructure string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the directory catalog",
	Long: `Read projects, structures, and sensors straight from a configured
directory instance. Useful for checking what the gateway will serve
without going through the TLS protocol.`,
}

var catalogProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	RunE:  runCatalogProjects,
}

var catalogStructuresCmd = &cobra.Command{
	Use:   "structures",
	Short: "List structures of a project",
	RunE:  runCatalogStructures,
}

var catalogSensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "List sensors under a project or structure",
	RunE:  runCatalogSensors,
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogInstance, "instance", "1", "instance selector")
	catalogCmd.PersistentFlags().StringVarP(&catalogFormat, "output", "o", "table", "output format (table, json, yaml)")

	catalogStructuresCmd.Flags().StringVar(&catalogProject, "project", "", "project id")
	catalogStructuresCmd.MarkFlagRequired("project")

	catalogSensorsCmd.Flags().StringVar(&catalogProject, "project", "", "project id")
	catalogSensorsCmd.Flags().StringVar(&catalogStructure, "structure", "", "structure id")

	catalogCmd.AddCommand(catalogProjectsCmd)
	catalogCmd.AddCommand(catalogStructuresCmd)
	catalogCmd.AddCommand(catalogSensorsCmd)
}

func catalogStore() (*store.Store, *output.Printer, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}

	format, err := output.ParseFormat(catalogFormat)
	if err != nil {
		return nil, nil, err
	}
	printer := output.NewPrinter(os.Stdout, format, true)

	st, err := openInstance(cfg, catalogInstance)
	if err != nil {
		return nil, nil, err
	}
	return st, printer, nil
}

func runCatalogProjects(cmd *cobra.Command, args []string) error {
	st, printer, err := catalogStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListProjects(context.Background(), nil)
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(rows)
	}
	table := output.NewTableData("projectid", "projectname")
	for _, r := range rows {
		table.AddRow(r.ProjectID, r.ProjectName)
	}
	return output.PrintTable(printer.Writer(), table)
}

func runCatalogStructures(cmd *cobra.Command, args []string) error {
	st, printer, err := catalogStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListStructures(context.Background(), catalogProject)
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(rows)
	}
	table := output.NewTableData("stid", "stname", "staddr")
	for _, r := range rows {
		table.AddRow(r.StID, r.StName, r.StAddr)
	}
	return output.PrintTable(printer.Writer(), table)
}

func runCatalogSensors(cmd *cobra.Command, args []string) error {
	var scope store.Scope
	switch {
	case catalogStructure != "":
		scope = store.StructureScope(catalogStructure)
	case catalogProject != "":
		scope = store.ProjectScope(catalogProject)
	default:
		return fmt.Errorf("either --project or --structure is required")
	}

	st, printer, err := catalogStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListSensors(context.Background(), scope)
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(rows)
	}
	table := output.NewTableData("deviceid", "channel", "device_type", "data_type", "is3axis")
	for _, r := range rows {
		table.AddRow(r.DeviceID, r.Channel, r.DeviceType, r.DataType, r.Is3Axis)
	}
	return output.PrintTable(printer.Writer(), table)
}
