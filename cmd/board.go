package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/unblockhq/unblock/internal/ui"
	"github.com/unblockhq/unblock/models"
)

var (
	boardAPIBase  string
	boardInterval time.Duration
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Live terminal board of marketplace tasks",
	Long: `Opens an interactive terminal board that polls a running engine's
HTTP API and shows every task with its lifecycle status. Requires an
interactive terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("board requires an interactive terminal; use 'unblock serve' and the JSON API instead")
		}

		client := &http.Client{Timeout: 5 * time.Second}
		fetch := func() (ui.BoardSnapshot, error) {
			var snap ui.BoardSnapshot
			var taskResp struct {
				Tasks []models.Task `json:"tasks"`
			}
			if err := fetchJSON(client, boardAPIBase+"/api/tasks", &taskResp); err != nil {
				return snap, err
			}
			var trustResp struct {
				Records []models.TrustRecord `json:"records"`
			}
			if err := fetchJSON(client, boardAPIBase+"/api/trust", &trustResp); err != nil {
				return snap, err
			}
			snap.Tasks = taskResp.Tasks
			snap.Trust = trustResp.Records
			return snap, nil
		}

		model := ui.NewBoard(fetch, boardInterval)
		_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
		return err
	},
}

func fetchJSON(client *http.Client, url string, dst any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func init() {
	boardCmd.Flags().StringVar(&boardAPIBase, "api", "http://localhost:8080", "base URL of a running engine API")
	boardCmd.Flags().DurationVar(&boardInterval, "interval", 2*time.Second, "poll interval")
	rootCmd.AddCommand(boardCmd)
}
