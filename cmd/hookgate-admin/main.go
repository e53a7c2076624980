// ABOUTME: Admin CLI for hookgate tenant, integration and credential management
// ABOUTME: Talks to the management API over HTTP with JWT authentication

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
 _                 _                _
| |__   ___   ___ | | ____ _  __ _| |_ ___
| '_ \ / _ \ / _ \| |/ / _' |/ _' | __/ _ \
| | | | (_) | (_) |   < (_| | (_| | ||  __/
|_| |_|\___/ \___/|_|\_\__, |\__,_|\__\___|  admin
                       |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("HOOKGATE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("HOOKGATE_TOKEN")

	c := &client{baseURL: strings.TrimRight(baseURL, "/"), token: token}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "tenants":
		err = cmdTenants(c, args)
	case "integrations":
		err = cmdIntegrations(c, args)
	case "token":
		err = cmdToken(c, args)
	case "audit":
		err = cmdAudit(c, args)
	case "simulate":
		err = cmdSimulate(c, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: hookgate-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  tenants create --name NAME [--quota N]   Create a tenant")
	fmt.Println("  tenants deactivate <tenant-id>           Deactivate a tenant")
	fmt.Println("  tenants usage <tenant-id>                Show current window usage")
	fmt.Println("  integrations                             List all integrations")
	fmt.Println("  integrations list [--tenant ID]          List integrations")
	fmt.Println("  integrations create --tenant ID --agent ID [--channel KIND]")
	fmt.Println("  token issue <integration-id>             Issue the first credential")
	fmt.Println("  token regenerate <integration-id>        Rotate the credential")
	fmt.Println("  token revoke <integration-id>            Revoke and deactivate")
	fmt.Println("  audit <integration-id> [--limit N]       Show recent audit records")
	fmt.Println("  simulate <integration-id> [json]         Dry-run a webhook call")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  HOOKGATE_URL    Gateway base URL (default: http://localhost:8080)")
	fmt.Println("  HOOKGATE_TOKEN  Management JWT (required unless auth is disabled)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export HOOKGATE_TOKEN=\"eyJhbG...\"")
	fmt.Println("  hookgate-admin tenants create --name acme --quota 120")
	fmt.Println("  hookgate-admin integrations create --tenant <id> --agent support-bot")
	fmt.Println("  hookgate-admin token issue <integration-id>")
	fmt.Println("  hookgate-admin simulate <integration-id> '{\"text\":\"hello\"}'")
	fmt.Println()
}

// client is a thin JSON HTTP client for the management API.
type client struct {
	baseURL string
	token   string
}

// do performs one management API call and decodes the JSON response.
// out may be nil for responses without a body.
func (c *client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Detail != "" {
				return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Detail)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func cmdTenants(c *client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tenants create|deactivate|usage")
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("tenants create", flag.ExitOnError)
		name := fs.String("name", "", "tenant name")
		quota := fs.Int("quota", 0, "requests per minute (0 = server default)")
		_ = fs.Parse(args[1:])
		if *name == "" {
			return fmt.Errorf("--name is required")
		}

		var tenant struct {
			ID             string `json:"id"`
			Name           string `json:"name"`
			Status         string `json:"status"`
			QuotaPerMinute int    `json:"quota_per_minute"`
		}
		if err := c.do(http.MethodPost, "/api/tenants",
			map[string]any{"name": *name, "quota_per_minute": *quota}, &tenant); err != nil {
			return err
		}

		color.Green("Created tenant %s", tenant.ID)
		fmt.Printf("  Name:   %s\n", tenant.Name)
		fmt.Printf("  Quota:  %d/minute\n", tenant.QuotaPerMinute)
		return nil

	case "deactivate":
		if len(args) < 2 {
			return fmt.Errorf("usage: tenants deactivate <tenant-id>")
		}
		if err := c.do(http.MethodPost, "/api/tenants/"+args[1]+"/deactivate", nil, nil); err != nil {
			return err
		}
		color.Yellow("Tenant %s deactivated", args[1])
		return nil

	case "usage":
		if len(args) < 2 {
			return fmt.Errorf("usage: tenants usage <tenant-id>")
		}
		var usage struct {
			TenantID  string `json:"tenant_id"`
			Limit     int    `json:"limit"`
			Used      int64  `json:"used"`
			Remaining int    `json:"remaining"`
			ResetAt   int64  `json:"reset_at"`
		}
		if err := c.do(http.MethodGet, "/api/tenants/"+args[1]+"/usage", nil, &usage); err != nil {
			return err
		}

		cyan := color.New(color.FgCyan)
		fmt.Println()
		cyan.Println("  Current window")
		cyan.Println("  --------------")
		fmt.Printf("  Limit:      %d\n", usage.Limit)
		fmt.Printf("  Used:       %d\n", usage.Used)
		fmt.Printf("  Remaining:  %d\n", usage.Remaining)
		fmt.Printf("  Resets:     %s\n", time.Unix(usage.ResetAt, 0).Local().Format(time.RFC1123))
		fmt.Println()
		return nil

	default:
		return fmt.Errorf("unknown tenants subcommand: %s", args[0])
	}
}

type integrationRow struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	AgentID     string     `json:"agent_id"`
	ChannelKind string     `json:"channel_kind"`
	Status      string     `json:"status"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

func cmdIntegrations(c *client, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("integrations list", flag.ExitOnError)
		tenant := fs.String("tenant", "", "filter by tenant ID")
		_ = fs.Parse(args[1:])

		path := "/api/integrations"
		if *tenant != "" {
			path += "?tenant_id=" + *tenant
		}

		var resp struct {
			Integrations []integrationRow `json:"integrations"`
		}
		if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}

		if len(resp.Integrations) == 0 {
			fmt.Println("No integrations.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTENANT\tAGENT\tCHANNEL\tSTATUS\tLAST USED")
		for _, i := range resp.Integrations {
			lastUsed := "never"
			if i.LastUsedAt != nil {
				lastUsed = i.LastUsedAt.Local().Format("2006-01-02 15:04")
			}
			status := i.Status
			if status == "active" {
				status = color.GreenString(status)
			} else {
				status = color.YellowString(status)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				i.ID, i.TenantID, i.AgentID, i.ChannelKind, status, lastUsed)
		}
		return w.Flush()

	case "create":
		fs := flag.NewFlagSet("integrations create", flag.ExitOnError)
		tenant := fs.String("tenant", "", "tenant ID")
		agent := fs.String("agent", "", "agent ID")
		channel := fs.String("channel", "generic", "channel kind")
		_ = fs.Parse(args[1:])
		if *tenant == "" || *agent == "" {
			return fmt.Errorf("--tenant and --agent are required")
		}

		var created integrationRow
		if err := c.do(http.MethodPost, "/api/integrations", map[string]string{
			"tenant_id":    *tenant,
			"agent_id":     *agent,
			"channel_kind": *channel,
		}, &created); err != nil {
			return err
		}

		color.Green("Created integration %s", created.ID)
		fmt.Printf("  Agent:    %s\n", created.AgentID)
		fmt.Printf("  Channel:  %s\n", created.ChannelKind)
		fmt.Println()
		fmt.Println("Issue a credential with:")
		fmt.Printf("  hookgate-admin token issue %s\n", created.ID)
		return nil

	default:
		return fmt.Errorf("unknown integrations subcommand: %s", args[0])
	}
}

func cmdToken(c *client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: token issue|regenerate|revoke <integration-id>")
	}
	id := args[1]

	switch args[0] {
	case "issue", "regenerate":
		path := "/api/integrations/" + id + "/token"
		if args[0] == "regenerate" {
			path += "/regenerate"
		}

		var resp struct {
			Secret string `json:"secret"`
			Note   string `json:"note"`
		}
		if err := c.do(http.MethodPost, path, nil, &resp); err != nil {
			return err
		}

		fmt.Println()
		color.Green("  Webhook secret (shown once, store it now):")
		fmt.Println()
		fmt.Printf("    %s\n", resp.Secret)
		fmt.Println()
		return nil

	case "revoke":
		if err := c.do(http.MethodPost, "/api/integrations/"+id+"/revoke", nil, nil); err != nil {
			return err
		}
		color.Yellow("Credential revoked; integration %s is now inactive", id)
		return nil

	default:
		return fmt.Errorf("unknown token subcommand: %s", args[0])
	}
}

func cmdAudit(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: audit <integration-id> [--limit N]")
	}
	id := args[0]

	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	limit := fs.Int("limit", 20, "max records")
	_ = fs.Parse(args[1:])

	var resp struct {
		Records []struct {
			Timestamp time.Time `json:"timestamp"`
			Outcome   string    `json:"outcome"`
			SourceIP  string    `json:"source_ip"`
			Detail    string    `json:"detail"`
		} `json:"records"`
	}
	path := fmt.Sprintf("/api/integrations/%s/audit?limit=%d", id, *limit)
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}

	if len(resp.Records) == 0 {
		fmt.Println("No audit records.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOUTCOME\tSOURCE\tDETAIL")
	for _, rec := range resp.Records {
		outcome := rec.Outcome
		switch outcome {
		case "accepted", "simulated":
			outcome = color.GreenString(outcome)
		case "execution_error":
			outcome = color.RedString(outcome)
		default:
			outcome = color.YellowString(outcome)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"), outcome, rec.SourceIP, rec.Detail)
	}
	return w.Flush()
}

func cmdSimulate(c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: simulate <integration-id> [json-payload]")
	}
	id := args[0]

	payload := json.RawMessage(`{}`)
	if len(args) > 1 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("payload is not valid JSON")
		}
		payload = json.RawMessage(args[1])
	}

	var result json.RawMessage
	if err := c.do(http.MethodPost, "/api/integrations/"+id+"/simulate", payload, &result); err != nil {
		return err
	}

	color.Green("Simulation accepted")
	var pretty bytes.Buffer
	if json.Indent(&pretty, result, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(result))
	}
	return nil
}
