package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/generator"
	"github.com/doITmagic/api-contract-mcp/internal/healthcheck"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
	"github.com/doITmagic/api-contract-mcp/internal/storage"
	"github.com/doITmagic/api-contract-mcp/internal/tools"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var logger = logging.Default

type MCPTool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// DescribeInput defines the typed input for the describe_api_contract tool.
type DescribeInput struct {
	Path   string `json:"path" jsonschema:"route template or concrete request path, e.g. /api/v1/posts/123"`
	Method string `json:"method,omitempty" jsonschema:"HTTP method (default GET)"`
}

// DescribeOutput defines the typed output for the describe_api_contract tool.
type DescribeOutput struct {
	Result string `json:"result"`
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default: <project>/.contract.yaml)")
	projectFlag := flag.String("project", "", "Laravel project root (overrides project_root)")
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	healthFlag := flag.Bool("health", false, "Run health check and exit")

	flag.Usage = printUsage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("API Contract MCP Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Date: %s\n", Date)
		os.Exit(0)
	}

	cfg, err := config.LoadProject(*configPath, *projectFlag)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)
	if cfg.Logging.Path != "" {
		if err := logger.OpenFile(cfg.Abs(cfg.Logging.Path), 10); err != nil {
			logger.Warn("Failed to open log file %s: %v", cfg.Logging.Path, err)
		}
		defer logger.Close()
	}

	// Use a context that cancels on OS signals for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *healthFlag {
		results := healthcheck.CheckAll(ctx, cfg)
		fmt.Fprint(os.Stderr, healthcheck.FormatResults(results))
		if !healthcheck.Healthy(results) {
			fmt.Fprintln(os.Stderr, healthcheck.GetRemediation(results))
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Startup health check is informational: the contract tools work without
	// the search services and a missing contract is reported per call.
	for _, result := range healthcheck.CheckAll(ctx, cfg) {
		switch result.Status {
		case healthcheck.StatusOK:
			logger.Info("✓ %s: %s", result.Service, result.Message)
		case healthcheck.StatusWarning:
			logger.Warn("! %s: %s", result.Service, result.Message)
		default:
			logger.Error("✗ %s: %s", result.Service, result.Message)
		}
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "api-contract",
		Version: Version,
	}, nil)

	loader := tools.NewContractLoader(cfg.OutputPath())
	routes := &lazyRoutes{cfg: cfg}
	defer routes.Close()

	registerDescribeToolTyped(server, tools.NewDescribeContractTool(loader))
	registerAgentTool(server, tools.NewListContractsTool(loader))
	registerAgentTool(server, tools.NewValidateContractTool(loader, routes))
	registerAgentTool(server, tools.NewCompareContractsTool(loader, cfg.ProjectRoot, cfg.VersionsPath()))

	if cfg.Semantic.Enabled {
		index, client, err := storage.OpenRouteIndex(cfg.Semantic, cfg.ProjectRoot)
		if err != nil {
			logger.Warn("Semantic search disabled: %v", err)
		} else {
			defer client.Close()
			registerAgentTool(server, tools.NewSearchRoutesTool(index))
		}
	}

	registerContractResource(server, cfg.OutputPath())

	logger.Info("MCP API Contract Server started (stdio mode)")
	logger.Info("Project: %s", cfg.ProjectRoot)
	logger.Info("Contract: %s", cfg.OutputPath())

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		logger.Error("Server terminated: %v", err)
		os.Exit(1)
	}
}

// lazyRoutes opens the project on the first validate call; indexing the PHP
// sources is too slow to do at startup.
type lazyRoutes struct {
	cfg *config.Config

	once    sync.Once
	project *generator.Project
	err     error
}

func (l *lazyRoutes) LiveRoutes(ctx context.Context) ([]contract.RouteKey, error) {
	l.once.Do(func() {
		l.project, l.err = generator.Open(l.cfg, logger)
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.project.Assembler.LiveRoutes(ctx)
}

func (l *lazyRoutes) Close() error {
	if l.project == nil {
		return nil
	}
	return l.project.Close()
}

// registerDescribeToolTyped registers describe_api_contract using the typed
// ToolHandlerFor API from the MCP Go SDK.
func registerDescribeToolTyped(server *mcp.Server, tool *tools.DescribeContractTool) {
	mcp.AddTool[DescribeInput, DescribeOutput](server, &mcp.Tool{
		Name:        tool.Name(),
		Description: tool.Description(),
	}, func(ctx context.Context, req *mcp.CallToolRequest, input DescribeInput) (*mcp.CallToolResult, DescribeOutput, error) {
		args := map[string]interface{}{"path": input.Path}
		if input.Method != "" {
			args["method"] = input.Method
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return nil, DescribeOutput{}, err
		}
		return nil, DescribeOutput{Result: result}, nil
	})
}

func registerAgentTool(server *mcp.Server, tool MCPTool) {
	schema := getToolSchema(tool.Name())
	server.AddTool(&mcp.Tool{
		Name:        tool.Name(),
		Description: tool.Description(),
		InputSchema: schema,
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]interface{}{}
		if req.Params != nil && req.Params.Arguments != nil {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: err.Error()},
				},
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: result},
			},
		}, nil
	})
}

// registerContractResource exposes the artifact itself as a readable resource
func registerContractResource(server *mcp.Server, path string) {
	res := contractResource(path)
	server.AddResource(res, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, mcp.ResourceNotFoundError(req.Params.URI)
			}
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      res.URI,
					MIMEType: res.MIMEType,
					Text:     string(data),
				},
			},
		}, nil
	})
}

func contractResource(path string) *mcp.Resource {
	return &mcp.Resource{
		URI:         fileURI(path),
		Name:        "api-contract",
		Title:       "API Contract",
		Description: "Generated API contract (" + filepath.Base(path) + ")",
		MIMEType:    "application/json",
	}
}

func fileURI(absPath string) string {
	// Ensure we produce a properly escaped file:// URI
	path := filepath.ToSlash(absPath)
	if !filepath.IsAbs(absPath) {
		abs := filepath.Join("/", path)
		path = filepath.ToSlash(abs)
	}
	u := &url.URL{Scheme: "file", Path: path}
	return u.String()
}

func getToolSchema(toolName string) map[string]interface{} {
	switch toolName {
	case "list_api_contracts":
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"method": map[string]interface{}{
					"type":        "string",
					"description": "Optional: only routes with this HTTP method",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Optional: only routes of this API version (e.g. 'v1')",
				},
				"search": map[string]interface{}{
					"type":        "string",
					"description": "Optional: case-insensitive term matched against paths, parameter names, auth type, rate limit names and field names",
				},
				"page": map[string]interface{}{
					"type":        "number",
					"description": "Optional: 1-based page number (takes precedence over offset)",
				},
				"offset": map[string]interface{}{
					"type":        "number",
					"description": "Optional: number of routes to skip",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of routes to return (default: 50, max: 200)",
				},
				"include_metadata": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the contract's generation metadata",
				},
			},
		}

	case "validate_api_contract":
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}

	case "compare_api_contracts":
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"contract_a": map[string]interface{}{
					"type":        "string",
					"description": "Older contract: a path relative to the project root or an archived file name",
				},
				"contract_b": map[string]interface{}{
					"type":        "string",
					"description": "Optional: newer contract (default: the current contract)",
				},
			},
			"required": []string{"contract_a"},
		}

	case "search_contract_routes":
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What the endpoint does, in natural language",
				},
				"method": map[string]interface{}{
					"type":        "string",
					"description": "Optional: only routes with this HTTP method",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results to return (default: 10)",
				},
			},
			"required": []string{"query"},
		}

	default:
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `API Contract MCP Server - query a Laravel application's generated API contract

USAGE:
    contract-mcp [OPTIONS]

EXAMPLES:
    # Serve the contract of the project in the current directory
    contract-mcp

    # Serve another project
    contract-mcp -project /srv/app

    # Run health check only
    contract-mcp -health

OPTIONS:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
CONFIGURATION PRECEDENCE:
    CLI flags > Environment variables > .contract.yaml > defaults

ENVIRONMENT VARIABLES:
    CONTRACT_OUTPUT              Contract artifact path (default: api-contracts/api.json)
    CONTRACT_LOG_LEVEL           Log level: debug, info, warn, error (default: info)
    CONTRACT_SEMANTIC_ENABLED    Register search_contract_routes (default: false)
    QDRANT_URL                   Qdrant server URL (default: http://localhost:6333)
    QDRANT_API_KEY               Qdrant API key (optional)
    OLLAMA_BASE_URL              Ollama server URL (default: http://localhost:11434)
    OLLAMA_EMBED                 Embedding model name (default: nomic-embed-text)
`)
}
