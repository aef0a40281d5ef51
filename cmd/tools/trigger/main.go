package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	base := os.Getenv("API_URL")
	if base == "" {
		base = "http://localhost:8081"
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(base, "/")+"/api/v1/refresh?trigger=tool", nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Secret", adminSecret)

	client := &http.Client{Timeout: 15 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Printf("Response Status: %s (unreadable body: %v)\n", resp.Status, err)
		os.Exit(1)
	}
	fmt.Printf("Response Status: %s\n", resp.Status)
	for _, k := range []string{"contractsUpdated", "processingTime", "runId", "kind", "error"} {
		if v, ok := body[k]; ok {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
