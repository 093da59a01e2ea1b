package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/seqlab/taxhist/internal/core/domain"
	"github.com/seqlab/taxhist/internal/core/service"
)

// Server metadata
const serverName = "taxhist"

// Tool descriptions
const (
	descListSamples = "List the sample identifiers available from the configured source, in load order. " +
		"Call this first to see which samples the other tools will operate on."

	descComputeHistograms = "Compute per-sample taxonomic abundance histograms. " +
		"For every sample and every taxonomy level this returns the distinct taxa " +
		"(identified by their full classification path down to that level) with their " +
		"record count and percentage of the sample. " +
		"Pass level to restrict the output to a single taxonomy level."

	descComputeLevelParam = "Taxonomy level to report (optional; all levels when omitted)"

	descMergeAcrossSamples = "Merge the per-sample histograms at one taxonomy level into a single table: " +
		"one row per taxon (outer join across samples, union of all taxa), one column per sample " +
		"holding that sample's percentage. A taxon absent from a sample has a null cell. " +
		"Use this to compare community composition across samples."

	descMergeLevelParam = "Taxonomy level to merge at (e.g. phylum)"

	descMergeAllLevels = "Merge the per-sample histograms at every taxonomy level, returning one merged " +
		"table per level with index labels carrying the full classification path. " +
		"When the source provides sample metadata, each merged table also carries one row per " +
		"metadata attribute with the attribute's value for each sample."

	descRenderChart = "Render the merged percentages at one taxonomy level as a stacked bar chart " +
		"(one bar per sample, one segment per taxon) and write it to a file. " +
		"The output format follows the file extension: .png or .svg."

	descRenderLevelParam = "Taxonomy level to chart (e.g. phylum)"
	descRenderPathParam  = "Output file path ending in .png or .svg"
)

func RegisterTools(s *server.MCPServer, svc *service.HistogramService) {
	s.AddTool(
		mcp.NewTool("list_samples",
			mcp.WithDescription(descListSamples),
		),
		listSamplesHandler(svc),
	)

	s.AddTool(
		mcp.NewTool("compute_histograms",
			mcp.WithDescription(descComputeHistograms),
			mcp.WithString("level",
				mcp.Description(descComputeLevelParam),
			),
		),
		computeHistogramsHandler(svc),
	)

	s.AddTool(
		mcp.NewTool("merge_across_samples",
			mcp.WithDescription(descMergeAcrossSamples),
			mcp.WithString("level",
				mcp.Required(),
				mcp.Description(descMergeLevelParam),
			),
		),
		mergeAcrossSamplesHandler(svc),
	)

	s.AddTool(
		mcp.NewTool("merge_all_levels",
			mcp.WithDescription(descMergeAllLevels),
		),
		mergeAllLevelsHandler(svc),
	)

	s.AddTool(
		mcp.NewTool("render_chart",
			mcp.WithDescription(descRenderChart),
			mcp.WithString("level",
				mcp.Required(),
				mcp.Description(descRenderLevelParam),
			),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description(descRenderPathParam),
			),
		),
		renderChartHandler(svc),
	)
}

func listSamplesHandler(svc *service.HistogramService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = service.WithToolName(ctx, "list_samples")
		ids, err := svc.SampleIDs(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list samples: %v", err)), nil
		}

		data, err := json.Marshal(ids)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func computeHistogramsHandler(svc *service.HistogramService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		level, _ := request.GetArguments()["level"].(string)
		if level != "" && !svc.Hierarchy().Contains(level) {
			return mcp.NewToolResultError(fmt.Sprintf("unrecognized taxonomy level %q", level)), nil
		}

		ctx = service.WithToolName(ctx, "compute_histograms")
		hc, err := svc.ComputeAll(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to compute histograms: %v", err)), nil
		}

		out := make(map[string]map[string][]map[string]any, hc.Len())
		for _, id := range hc.IDs() {
			set, _ := hc.Get(id)
			levels := make(map[string][]map[string]any, len(set))
			for name, hist := range set {
				if level != "" && name != level {
					continue
				}
				levels[name] = frameRecords(hist)
			}
			out[id] = levels
		}

		data, err := json.Marshal(out)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func mergeAcrossSamplesHandler(svc *service.HistogramService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		level, ok := request.GetArguments()["level"].(string)
		if !ok || level == "" {
			return mcp.NewToolResultError("level is required"), nil
		}

		ctx = service.WithToolName(ctx, "merge_across_samples")
		merged, err := svc.MergeLevel(ctx, level)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("merge failed: %v", err)), nil
		}

		data, err := json.Marshal(frameRecords(merged))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func mergeAllLevelsHandler(svc *service.HistogramService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = service.WithToolName(ctx, "merge_all_levels")
		byLevel, err := svc.MergeAllLevels(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("merge failed: %v", err)), nil
		}

		out := make(map[string][]map[string]any, len(byLevel))
		for level, merged := range byLevel {
			out[level] = frameRecords(merged)
		}

		data, err := json.Marshal(out)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func renderChartHandler(svc *service.HistogramService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		level, ok := request.GetArguments()["level"].(string)
		if !ok || level == "" {
			return mcp.NewToolResultError("level is required"), nil
		}
		path, ok := request.GetArguments()["path"].(string)
		if !ok || path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		ctx = service.WithToolName(ctx, "render_chart")
		if err := svc.RenderChart(ctx, level, path); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("chart written to %s", path)), nil
	}
}

// frameRecords flattens a frame into one JSON-friendly object per row: the
// index level names map to the row key's parts, then each column maps to
// its cell value (null for absent cells).
func frameRecords(f *domain.Frame) []map[string]any {
	indexNames := f.IndexNames()
	columns := f.Columns()
	keys := f.Keys()

	records := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		rec := make(map[string]any, len(indexNames)+len(columns))
		for i, name := range indexNames {
			if i < len(key) {
				rec[name] = key[i]
			} else {
				rec[name] = ""
			}
		}
		for _, col := range columns {
			v, _ := f.Cell(key, col)
			rec[col] = v
		}
		records = append(records, rec)
	}
	return records
}
