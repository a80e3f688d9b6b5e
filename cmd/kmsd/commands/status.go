package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shalu066900/pykms/internal/config"
	"github.com/shalu066900/pykms/internal/server"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the host identity and activation ledger",
	Long: `Print the KMS host's own identity (HWID, configured ePID override,
reported client count) and the persisted client activation history,
following the same ClientStore.List the web monitoring UI collaborator
would call.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	ident, err := cfg.BuildIdentity()
	if err != nil {
		return err
	}
	st, err := cfg.BuildStore()
	if err != nil {
		return err
	}

	snap, err := server.BuildSnapshot(context.Background(), ident, st)
	if err != nil {
		return err
	}

	fmt.Printf("HWID:            %s\n", snap.HWID)
	fmt.Printf("ePID override:   %s\n", emptyDash(snap.ConfiguredEpid))
	fmt.Printf("Reported count:  %d\n", snap.ReportedCount)
	fmt.Printf("Max clients:     %d\n\n", snap.MaxClients)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Client Machine ID", "SKU ID", "Machine Name", "N-Count", "Last Activation"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, rec := range snap.Clients {
		table.Append([]string{
			rec.ClientMachineID.String(),
			rec.SkuID.String(),
			rec.MachineName,
			fmt.Sprintf("%d", rec.NCount),
			rec.LastActivation.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	table.Render()
	return nil
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
