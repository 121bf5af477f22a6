// Package healthcheck verifies the project and the optional search services
// before the MCP server starts.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/llm"
)

// Check statuses
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Service string
	Status  string
	Message string
	Error   error
}

// CheckProject verifies root looks like a Laravel application
func CheckProject(root string) CheckResult {
	result := CheckResult{Service: "Project"}
	if _, err := os.Stat(filepath.Join(root, "artisan")); err != nil {
		result.Status = StatusError
		result.Error = err
		result.Message = fmt.Sprintf("No artisan file in %s", root)
		return result
	}
	result.Status = StatusOK
	result.Message = fmt.Sprintf("Laravel project at %s", root)
	return result
}

// CheckContract verifies the generated artifact can be loaded
func CheckContract(path string) CheckResult {
	result := CheckResult{Service: "Contract"}
	c, err := contract.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("No contract at %s yet", path)
	case err != nil:
		result.Status = StatusError
		result.Error = err
		result.Message = err.Error()
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("%d entries in %s", c.Len(), path)
	}
	return result
}

// CheckOllama verifies Ollama is running and accessible
func CheckOllama(ctx context.Context, baseURL string) CheckResult {
	if baseURL == "" {
		baseURL = llm.DefaultOllamaURL
	}
	return checkHTTP(ctx, "Ollama", strings.TrimRight(baseURL, "/"), "/api/tags")
}

// CheckQdrant verifies Qdrant is running and accessible
func CheckQdrant(ctx context.Context, url string) CheckResult {
	if url == "" {
		url = "http://localhost:6333"
	}
	return checkHTTP(ctx, "Qdrant", strings.TrimRight(url, "/"), "/readyz")
}

func checkHTTP(ctx context.Context, service, baseURL, probe string) CheckResult {
	result := CheckResult{Service: service}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+probe, nil)
	if err != nil {
		result.Status = StatusError
		result.Error = err
		result.Message = fmt.Sprintf("Failed to create request: %v", err)
		return result
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Status = StatusError
		result.Error = err
		result.Message = fmt.Sprintf("Cannot connect to %s at %s", service, baseURL)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Connected to %s at %s", service, baseURL)
	} else {
		result.Status = StatusError
		result.Message = fmt.Sprintf("%s returned status %d", service, resp.StatusCode)
	}
	return result
}

// CheckAll runs the checks that apply to cfg. The search services are only
// probed when semantic search is enabled.
func CheckAll(ctx context.Context, cfg *config.Config) []CheckResult {
	results := []CheckResult{
		CheckProject(cfg.ProjectRoot),
		CheckContract(cfg.OutputPath()),
	}
	if cfg.Semantic.Enabled {
		results = append(results,
			CheckOllama(ctx, cfg.Semantic.OllamaBaseURL),
			CheckQdrant(ctx, cfg.Semantic.QdrantURL),
		)
	}
	return results
}

// Healthy reports whether no check failed
func Healthy(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusError {
			return false
		}
	}
	return true
}

// FormatResults formats health check results for display
func FormatResults(results []CheckResult) string {
	var b strings.Builder
	b.WriteString("\n=== Health Check ===\n\n")

	for _, result := range results {
		var status string
		switch result.Status {
		case StatusOK:
			status = "✓"
		case StatusWarning:
			status = "!"
		case StatusError:
			status = "✗"
		default:
			status = "?"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", status, result.Service, result.Message)
	}
	return b.String()
}

// GetRemediation provides remediation steps for failed checks
func GetRemediation(results []CheckResult) string {
	var remediation strings.Builder

	for _, result := range results {
		if result.Status == StatusOK {
			continue
		}
		switch result.Service {
		case "Project":
			remediation.WriteString(`
Project is not a Laravel application:
  Set project_root in the config file or pass the project path.
`)
		case "Contract":
			remediation.WriteString(`
Contract is missing or unreadable:
  Generate it with:
    contract generate
`)
		case "Ollama":
			remediation.WriteString(`
Ollama is not accessible:
  Install Ollama:
    curl -fsSL https://ollama.ai/install.sh | sh

  Pull the embedding model:
    ollama pull nomic-embed-text
`)
		case "Qdrant":
			remediation.WriteString(`
Qdrant is not accessible:
  Start Qdrant with Docker:
    docker run -d -p 6333:6333 -p 6334:6334 qdrant/qdrant
`)
		}
	}
	return remediation.String()
}
