package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/glasshouse-ai/glasshouse/pkg/embedding"
	"github.com/glasshouse-ai/glasshouse/pkg/generative"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/vectorstore"
)

const claimsSchema = `{
	"type": "object",
	"required": ["claims"],
	"properties": {
		"claims": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

var claimsValidator = generative.MustValidator(claimsSchema)

// Investigator retrieves a company's public-facing evidence and extracts
// the claims it makes about itself. Retrieval failure fails the stage;
// claim extraction failure degrades to a first-sentence heuristic.
type Investigator struct {
	embedder  *embedding.Service
	store     vectorstore.Store
	generator *generative.Service
	cfg       Config
	logger    observability.Logger
}

// NewInvestigator creates the first pipeline stage.
func NewInvestigator(embedder *embedding.Service, store vectorstore.Store, generator *generative.Service, cfg Config, logger observability.Logger) *Investigator {
	return &Investigator{
		embedder:  embedder,
		store:     store,
		generator: generator,
		cfg:       cfg.withDefaults(),
		logger:    logger.WithPrefix("investigator"),
	}
}

// Run executes the stage and returns the advanced state.
func (inv *Investigator) Run(ctx context.Context, state *models.AnalysisState) (*models.AnalysisState, error) {
	queryVec, err := inv.embedder.EmbedQuery(ctx, state.UserQuery)
	if err != nil {
		return nil, err
	}

	news, err := inv.store.Search(ctx, vectorstore.SearchQuery{
		Company:     state.Company,
		Embedding:   queryVec,
		SourceTypes: []models.SourceType{models.SourceTypeNews},
		Limit:       inv.cfg.NewsTopK,
	})
	if err != nil {
		return nil, err
	}

	images, err := inv.store.Search(ctx, vectorstore.SearchQuery{
		Company:     state.Company,
		Embedding:   queryVec,
		SourceTypes: []models.SourceType{models.SourceTypeProductImage},
		Limit:       inv.cfg.ImageTopK,
	})
	if err != nil {
		return nil, err
	}

	claims := inv.extractClaims(ctx, state.Company, state.UserQuery, news)
	refs := collectImageRefs(images)

	inv.logger.Info("Investigation complete", map[string]interface{}{
		"company":      state.Company,
		"news_hits":    len(news),
		"image_hits":   len(images),
		"claims":       len(claims),
		"product_refs": len(refs),
	})
	return state.WithInvestigation(claims, refs), nil
}

func (inv *Investigator) extractClaims(ctx context.Context, company, query string, matches []models.Match) []string {
	if len(matches) == 0 {
		return nil
	}

	prompt := claimsPrompt(company, query, matches)
	var payload struct {
		Claims []string `json:"claims"`
	}
	if err := inv.generator.GenerateJSON(ctx, prompt, claimsValidator, &payload); err != nil {
		inv.logger.Warn("Claim extraction failed, falling back to first sentences", map[string]interface{}{
			"company": company,
			"error":   err.Error(),
		})
		return heuristicClaims(matches)
	}

	claims := make([]string, 0, len(payload.Claims))
	for _, claim := range payload.Claims {
		if claim = strings.TrimSpace(claim); claim != "" {
			claims = append(claims, claim)
		}
	}
	return claims
}

func claimsPrompt(company, query string, matches []models.Match) string {
	var b strings.Builder
	b.WriteString("You are an investigator reviewing a company's public communications.\n\n")
	fmt.Fprintf(&b, "Company: %s\nFocus: %s\n\n", company, query)
	b.WriteString("== Press and marketing evidence ==\n")
	b.WriteString(formatEvidence(matches))
	b.WriteString("\n\nExtract every explicit or implicit ethical, environmental and humanitarian claim the company makes in these materials, including marketing language about its products.\n")
	b.WriteString(`Return ONLY a JSON object of the form {"claims": ["<claim>", ...]} with no markdown fences.`)
	return b.String()
}

// heuristicClaims is the degraded extraction path: the first sentence of
// each retrieved chunk, deduplicated in retrieval order.
func heuristicClaims(matches []models.Match) []string {
	seen := make(map[string]bool, len(matches))
	var claims []string
	for _, match := range matches {
		sentence := firstSentence(match.Document.Content)
		if sentence == "" || seen[sentence] {
			continue
		}
		seen[sentence] = true
		claims = append(claims, sentence)
	}
	return claims
}

func collectImageRefs(matches []models.Match) []string {
	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, match := range matches {
		url := match.Document.ImageURL
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		refs = append(refs, url)
	}
	return refs
}
