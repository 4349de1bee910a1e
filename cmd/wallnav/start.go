package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// startCmd sends the start request to a running controller
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Ask a running controller to start navigating",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

type startReply struct {
	Navigating bool `json:"navigating"`
	Started    bool `json:"started"`
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := cfg.HTTP.Addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(strings.TrimRight(url, "/")+"/start_navigation", "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to controller: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("start request failed with status %d", resp.StatusCode)
	}
	var reply startReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if isJSONOutput() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	if reply.Started {
		fmt.Println("Navigation started")
	} else {
		fmt.Println("Navigation already active")
	}
	return nil
}
