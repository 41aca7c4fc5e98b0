package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"findata_pipeline/pkg/core/bias"
	"findata_pipeline/pkg/core/chunker"
	"findata_pipeline/pkg/core/config"
	"findata_pipeline/pkg/core/knowledge"
	"findata_pipeline/pkg/core/llm"
	"findata_pipeline/pkg/core/pipeline"
	"findata_pipeline/pkg/core/store"
	"findata_pipeline/pkg/core/summarize"
	"findata_pipeline/pkg/core/tables"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	configPath := flag.String("config", "config/pipeline.yaml", "Path to pipeline config")
	ticker := flag.String("ticker", "", "Company ticker (required)")
	company := flag.String("company", "", "Company name")
	filingHTML := flag.String("filing-html", "", "Path to an SEC filing section HTML file")
	section := flag.String("section", "item_8", "Filing section identifier")
	sectionName := flag.String("section-name", "Financial Statements", "Human-readable section name")
	filingType := flag.String("filing-type", "10-K", "Filing type")
	accession := flag.String("accession", "", "Filing accession number")
	wikiPath := flag.String("wiki", "", "Path to a Wikipedia plain-text file")
	newsPath := flag.String("news", "", "Path to a news plain-text file")
	useDB := flag.Bool("db", false, "Also persist extracted tables to Postgres (requires DATABASE_URL)")
	flag.Parse()

	if *ticker == "" {
		log.Fatal("Error: -ticker is required.")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	fmt.Println("🚀 Financial Data Pipeline Starting...")
	fmt.Printf("📂 Processing %s (%s)...\n", *ticker, *company)

	ctx := context.Background()

	var tableRepo *store.TableRepo
	if *useDB {
		if err := store.InitDB(ctx); err != nil {
			log.Fatalf("Database init failed: %v", err)
		}
		defer store.Close()
		tableRepo = store.NewTableRepo()
	}

	// 1. Assemble stages
	tokenChunker, err := chunker.NewTokenChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		log.Fatalf("Chunker init failed: %v", err)
	}

	provider := &llm.GeminiProvider{Model: cfg.Summarizer.Model}
	summarizer, err := summarize.NewLLMSummarizer(provider, cfg.Summarizer.RateLimitRPM,
		summarize.WithMaxSummaryLength(cfg.Summarizer.MaxSummaryLength),
		summarize.WithTokenCounter(tokenChunker),
	)
	if err != nil {
		log.Fatalf("Summarizer init failed: %v", err)
	}

	processor, err := tables.NewTableProcessor(summarizer, cfg.Tables.MinTableSize)
	if err != nil {
		log.Fatalf("Table processor init failed: %v", err)
	}

	tracker, err := bias.NewCoverageTracker(cfg.Bias.CoveragePath)
	if err != nil {
		log.Fatalf("Coverage tracker init failed: %v", err)
	}

	boosts, err := bias.NewBoostConfigManager(cfg.Bias.BoostConfigPath)
	if err != nil {
		log.Fatalf("Boost config init failed: %v", err)
	}

	p, err := pipeline.NewSectionPipeline(tokenChunker, processor, tracker, knowledge.NewMemoryStore())
	if err != nil {
		log.Fatalf("Pipeline init failed: %v", err)
	}
	p.WithTableStore(store.NewTableStore(cfg.Storage.TableDir)).WithBoostConfig(boosts)

	// 2. Gather sections
	input := pipeline.CompanyInput{
		Ticker:  *ticker,
		Company: *company,
		Metadata: map[string]interface{}{
			"filing_type": *filingType,
		},
	}

	meta := tables.SectionMetadata{
		Ticker:          *ticker,
		Company:         *company,
		FilingType:      *filingType,
		AccessionNumber: *accession,
		Section:         *section,
		SectionName:     *sectionName,
	}

	if *filingHTML != "" {
		data, err := os.ReadFile(*filingHTML)
		if err != nil {
			log.Fatalf("Failed to read filing HTML %s: %v", *filingHTML, err)
		}
		input.Sections = append(input.Sections, pipeline.Section{
			Source: bias.SourceSEC,
			HTML:   string(data),
			Meta:   meta,
		})
	}
	if *wikiPath != "" {
		data, err := os.ReadFile(*wikiPath)
		if err != nil {
			log.Fatalf("Failed to read wiki text %s: %v", *wikiPath, err)
		}
		input.Sections = append(input.Sections, pipeline.Section{
			Source: bias.SourceWikipedia,
			Text:   string(data),
			Meta:   tables.SectionMetadata{Ticker: *ticker, Company: *company, Section: "wikipedia"},
		})
	}
	if *newsPath != "" {
		data, err := os.ReadFile(*newsPath)
		if err != nil {
			log.Fatalf("Failed to read news text %s: %v", *newsPath, err)
		}
		input.Sections = append(input.Sections, pipeline.Section{
			Source: bias.SourceNews,
			Text:   string(data),
			Meta:   tables.SectionMetadata{Ticker: *ticker, Company: *company, Section: "news"},
		})
	}

	if len(input.Sections) == 0 {
		log.Fatal("Error: no input provided. Pass at least one of -filing-html, -wiki, -news.")
	}

	// 3. Run
	result, err := p.ProcessCompany(ctx, input)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	if tableRepo != nil && len(result.Tables) > 0 {
		if err := tableRepo.Save(ctx, result.Tables); err != nil {
			log.Fatalf("Failed to persist tables to database: %v", err)
		}
		fmt.Printf("💾 Persisted %d tables to Postgres.\n", len(result.Tables))
	}

	// 4. Report
	fmt.Println("\n################################################################################")
	fmt.Println("                   FINANCIAL DATA PIPELINE - RUN REPORT")
	fmt.Printf("                   Target: %s\n", *ticker)
	fmt.Println("################################################################################")

	fmt.Println("\n[1] CHUNKS")
	fmt.Printf("Total chunks:        %d\n", len(result.Chunks))
	bySource := make(map[string]int)
	for _, c := range result.Chunks {
		bySource[c.DataSource]++
	}
	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		fmt.Printf("  %-12s       %d\n", s+":", bySource[s])
	}

	fmt.Println("\n[2] TABLES")
	fmt.Printf("Tables extracted:    %d\n", len(result.Tables))
	for _, t := range result.Tables {
		fmt.Printf("  %-40s %s (%.2f)\n", t.TableID, t.TableType, t.Confidence)
	}

	fmt.Println("\n[3] COVERAGE")
	fmt.Printf("Completeness:        %.2f\n", result.Coverage.CompletenessScore)
	fmt.Printf("Avg chunk length:    %.0f chars\n", result.Coverage.AvgChunkLength)

	fmt.Println("\n[Done] Pipeline Complete.")
}
