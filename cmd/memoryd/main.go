// Command memoryd runs the C2 Memory Service as a long-lived process
// reading newline-delimited JSON-RPC requests from stdin and writing
// responses to stdout, following cmd/cliaimonitor/main.go's flag-driven
// startup shape with the HTTP server swapped for internal/rpc's stdio
// transport (SPEC_FULL.md section 4).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/agentgov/core/internal/memory"
	"github.com/agentgov/core/internal/rpc"
)

func main() {
	graphPath := flag.String("graph", "data/memory.jsonl", "Path to the memory graph JSONL file")
	compactThreshold := flag.Int("compact-threshold", 500, "Appended records before auto-compaction")
	flag.Parse()

	svc, err := memory.Open(*graphPath, *compactThreshold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: failed to open graph store: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	methods := map[string]rpc.Handler{
		"create_entities":     handleCreateEntities(svc),
		"create_relations":    handleCreateRelations(svc),
		"add_observations":    handleAddObservations(svc),
		"delete_observations": handleDeleteObservations(svc),
		"delete_entity":       handleDeleteEntity(svc),
		"delete_relations":    handleDeleteRelations(svc),
		"get_entity":          handleGetEntity(svc),
		"get_entities_by_tier": handleGetEntitiesByTier(svc),
		"search_nodes":        handleSearchNodes(svc),
		"ingest_documents":    handleIngestDocuments(svc),
	}

	if err := rpc.Serve(os.Stdin, os.Stdout, methods); err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: stdio transport terminated: %v\n", err)
		os.Exit(2)
	}
}

func handleCreateEntities(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Entities        []memory.Entity `json:"entities"`
			ReplaceExisting bool            `json:"replace_existing"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.CreateEntities(in.Entities, in.ReplaceExisting)
	}
}

func handleCreateRelations(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Relations []memory.Relation `json:"relations"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.CreateRelations(in.Relations)
	}
}

func handleAddObservations(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Name           string   `json:"name"`
			Observations   []string `json:"observations"`
			CallerRole     string   `json:"caller_role"`
			ChangeApproved bool     `json:"change_approved"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.AddObservations(in.Name, in.Observations, in.CallerRole, in.ChangeApproved)
	}
}

func handleDeleteObservations(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Name           string   `json:"name"`
			Observations   []string `json:"observations"`
			CallerRole     string   `json:"caller_role"`
			ChangeApproved bool     `json:"change_approved"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.DeleteObservations(in.Name, in.Observations, in.CallerRole, in.ChangeApproved)
	}
}

func handleDeleteEntity(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Name       string `json:"name"`
			CallerRole string `json:"caller_role"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.DeleteEntity(in.Name, in.CallerRole)
	}
}

func handleDeleteRelations(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Relations []memory.Relation `json:"relations"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.DeleteRelations(in.Relations)
	}
}

func handleGetEntity(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		entity, ok := svc.GetEntity(in.Name)
		if !ok {
			return nil, fmt.Errorf("not_found: %s", in.Name)
		}
		return entity, nil
	}
}

func handleGetEntitiesByTier(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Tier string `json:"tier"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.GetEntitiesByTier(in.Tier), nil
	}
}

func handleSearchNodes(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.SearchNodes(in.Query), nil
	}
}

func handleIngestDocuments(svc *memory.Service) rpc.Handler {
	return func(params json.RawMessage) (interface{}, error) {
		var in struct {
			Folder string `json:"folder"`
			Tier   string `json:"tier"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return svc.IngestDocuments(in.Folder, in.Tier)
	}
}
