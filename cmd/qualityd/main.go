// Command qualityd runs the C4 Quality Service (wrapping the C3 Trust
// Engine) as a long-lived stdio JSON-RPC process, following
// cmd/memoryd/main.go's shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/agentgov/core/internal/config"
	"github.com/agentgov/core/internal/quality"
	"github.com/agentgov/core/internal/rpc"
	"github.com/agentgov/core/internal/trust"
)

func main() {
	configPath := flag.String("config", "project-config.json", "Path to project-config.json")
	trustPath := flag.String("trust-db", "data/trust.db", "Path to the trust findings store")
	workDir := flag.String("workdir", ".", "Project working directory for subprocess tool commands")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qualityd: failed to load project config: %v\n", err)
		os.Exit(1)
	}

	trustEngine, err := trust.Open(*trustPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "qualityd: failed to open trust store: %v\n", err)
		os.Exit(1)
	}
	defer trustEngine.Close()

	svc := quality.New(cfg, trustEngine, *workDir)

	methods := map[string]rpc.Handler{
		"auto_format":        handleLanguageOp(svc.AutoFormat),
		"run_lint":           handleLanguageOp(svc.RunLint),
		"run_tests":          handleLanguageOp(svc.RunTests),
		"check_coverage":     handleLanguageOp(svc.CheckCoverage),
		"validate":           handleLanguageOp(svc.Validate),
		"check_all_gates":    handleCheckAllGates(svc),
		"get_trust_decision": handleGetTrustDecision(svc),
		"record_dismissal":   handleRecordDismissal(svc),
	}

	if err := rpc.Serve(os.Stdin, os.Stdout, methods); err != nil {
		fmt.Fprintf(os.Stderr, "qualityd: stdio transport terminated: %v\n", err)
		os.Exit(2)
	}
}

type languageOp func(ctx context.Context, language string) quality.CheckResult

func handleLanguageOp(op languageOp) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Language string `json:"language"`
			File     string `json:"file"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		language := in.Language
		if language == "" && in.File != "" {
			language = quality.DetectLanguage(in.File)
		}
		return op(context.Background(), language), nil
	}
}

func handleCheckAllGates(svc *quality.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Language string `json:"language"`
			File     string `json:"file"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		language := in.Language
		if language == "" && in.File != "" {
			language = quality.DetectLanguage(in.File)
		}
		return svc.CheckAllGates(context.Background(), language), nil
	}
}

func handleGetTrustDecision(svc *quality.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			FindingID string `json:"finding_id"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.GetTrustDecision(in.FindingID)
	}
}

func handleRecordDismissal(svc *quality.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			FindingID     string `json:"finding_id"`
			Justification string `json:"justification"`
			DismissedBy   string `json:"dismissed_by"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.RecordDismissal(in.FindingID, in.Justification, in.DismissedBy)
	}
}
