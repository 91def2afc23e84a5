package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	cancelStatus bool
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or a specific job",
	Long: `Queries the job server.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job; with --cancel the
job is cancelled instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "", "Server URL (default: http://<server.addr>)")
	statusCmd.Flags().BoolVar(&cancelStatus, "cancel", false, "Cancel the given job")
	rootCmd.AddCommand(statusCmd)
}

// statusJob mirrors the job fields the server reports
type statusJob struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Config struct {
		Kind     string `json:"kind"`
		Filter   string `json:"filter"`
		InputDir string `json:"inputDir"`
		CleanDir string `json:"cleanDir"`
		OutDir   string `json:"outDir"`
	} `json:"config"`
	Done           int                `json:"done"`
	Total          int                `json:"total"`
	RMSE           float64            `json:"rmse"`
	InitialRMSE    float64            `json:"initialRmse"`
	Params         map[string]float64 `json:"params"`
	Elapsed        float64            `json:"elapsed"`
	PagesPerSecond float64            `json:"pagesPerSecond"`
	Error          string             `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := serverURL
	if base == "" {
		base = "http://" + cfg.Server.Addr
	}
	client := &http.Client{Timeout: 10 * time.Second}

	if len(args) == 0 {
		if cancelStatus {
			return fmt.Errorf("--cancel requires a job id")
		}
		return listJobs(client, base+"/api/v1/jobs")
	}

	jobID := args[0]
	if cancelStatus {
		return cancelJob(client, base+"/api/v1/jobs/"+jobID, jobID)
	}
	return getJobStatus(client, base+"/api/v1/jobs/"+jobID+"/status", jobID)
}

// getJSON fetches url and decodes the body into v
func getJSON(client *http.Client, url string, v any) (int, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(client *http.Client, url string) error {
	var jobs []statusJob
	if _, err := getJSON(client, url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tKIND\tSTATE\tPROGRESS\tRMSE")
	for _, job := range jobs {
		rmse := "-"
		if job.RMSE > 0 {
			rmse = fmt.Sprintf("%.6f", job.RMSE)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", job.ID, job.Config.Kind, job.State, job.Done, job.Total, rmse)
	}
	return w.Flush()
}

func getJobStatus(client *http.Client, url, jobID string) error {
	var status statusJob
	code, err := getJSON(client, url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", status.ID)
	fmt.Printf("State: %s\n", status.State)
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Kind: %s\n", status.Config.Kind)
	if status.Config.Filter != "" {
		fmt.Printf("  Filter: %s\n", status.Config.Filter)
	}
	fmt.Printf("  Input: %s\n", status.Config.InputDir)
	if status.Config.CleanDir != "" {
		fmt.Printf("  Ground truth: %s\n", status.Config.CleanDir)
	}
	if status.Config.OutDir != "" {
		fmt.Printf("  Output: %s\n", status.Config.OutDir)
	}
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Done: %d/%d\n", status.Done, status.Total)
	if status.InitialRMSE > 0 {
		fmt.Printf("  Initial RMSE: %.6f\n", status.InitialRMSE)
	}
	if status.RMSE > 0 {
		fmt.Printf("  RMSE: %.6f\n", status.RMSE)
	}
	if len(status.Params) > 0 {
		fmt.Printf("  Parameters: %s\n", formatParams(status.Params))
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.PagesPerSecond > 0 {
		fmt.Printf("  Throughput: %.1f pages/sec\n", status.PagesPerSecond)
	}

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}
	return nil
}

func cancelJob(client *http.Client, url, jobID string) error {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Printf("Cancelling job %s\n", jobID)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job not found: %s", jobID)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}
}
