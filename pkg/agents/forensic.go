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

// technicalFocus biases patent retrieval toward capability language that
// plain user queries rarely contain.
const technicalFocus = "autonomous targeting guidance systems surveillance electronic warfare dual-use technical capabilities"

// Similarity bands for tagging finding relevance.
const (
	relevanceHighMin   = 0.75
	relevanceMediumMin = 0.5
)

// dualUseMarker splits the narrative into capabilities and risks.
const dualUseMarker = "Dual-Use Risks"

// Forensic retrieves patent evidence and distills technical findings.
// Retrieval failure fails the stage; the generative narrative is an
// optional enrichment and its failure is tolerated.
type Forensic struct {
	embedder  *embedding.Service
	store     vectorstore.Store
	generator *generative.Service
	cfg       Config
	logger    observability.Logger
}

// NewForensic creates the second pipeline stage.
func NewForensic(embedder *embedding.Service, store vectorstore.Store, generator *generative.Service, cfg Config, logger observability.Logger) *Forensic {
	return &Forensic{
		embedder:  embedder,
		store:     store,
		generator: generator,
		cfg:       cfg.withDefaults(),
		logger:    logger.WithPrefix("forensic"),
	}
}

// Run executes the stage and returns the advanced state.
func (f *Forensic) Run(ctx context.Context, state *models.AnalysisState) (*models.AnalysisState, error) {
	query := state.UserQuery + " " + technicalFocus
	queryVec, err := f.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	patents, err := f.store.Search(ctx, vectorstore.SearchQuery{
		Company:     state.Company,
		Embedding:   queryVec,
		SourceTypes: []models.SourceType{models.SourceTypePatent},
		Limit:       f.cfg.PatentTopK,
	})
	if err != nil {
		return nil, err
	}

	findings := buildFindings(patents)
	capabilities, risks := f.narrative(ctx, state, patents)

	f.logger.Info("Forensic analysis complete", map[string]interface{}{
		"company":     state.Company,
		"patent_hits": len(patents),
		"findings":    len(findings),
	})
	return state.WithForensics(findings, capabilities, risks), nil
}

func buildFindings(matches []models.Match) []models.TechnicalFinding {
	findings := make([]models.TechnicalFinding, 0, len(matches))
	for _, match := range matches {
		findings = append(findings, models.TechnicalFinding{
			PatentID:  patentID(match.Document),
			Excerpt:   truncateRunes(match.Document.Content, excerptRunes),
			Relevance: relevanceBand(match.Similarity),
		})
	}
	return findings
}

func relevanceBand(similarity float64) string {
	switch {
	case similarity >= relevanceHighMin:
		return "high"
	case similarity >= relevanceMediumMin:
		return "medium"
	default:
		return "low"
	}
}

func patentID(doc *models.Document) string {
	if v, ok := doc.Metadata["patent_id"].(string); ok && v != "" {
		return v
	}
	return doc.ID
}

// narrative asks the generative service for a capabilities and dual-use
// summary. Any failure here degrades to empty sections.
func (f *Forensic) narrative(ctx context.Context, state *models.AnalysisState, patents []models.Match) (string, string) {
	if len(patents) == 0 {
		return "", ""
	}

	text, err := f.generator.Generate(ctx, narrativePrompt(state, patents))
	if err != nil {
		f.logger.Warn("Capabilities narrative failed, continuing without it", map[string]interface{}{
			"company": state.Company,
			"error":   err.Error(),
		})
		return "", ""
	}

	capabilities := text
	risks := ""
	if idx := strings.Index(text, dualUseMarker); idx >= 0 {
		capabilities = text[:idx]
		risks = text[idx:]
	}
	return strings.TrimSpace(capabilities), strings.TrimSpace(risks)
}

func narrativePrompt(state *models.AnalysisState, patents []models.Match) string {
	var b strings.Builder
	b.WriteString("You are a forensic analyst reviewing patent filings for dual-use potential.\n\n")
	fmt.Fprintf(&b, "Company: %s\n", state.Company)
	if len(state.Claims) > 0 {
		b.WriteString("Public claims summary:\n")
		b.WriteString(truncateRunes(strings.Join(state.Claims, "\n"), 1000))
		b.WriteString("\n")
	}
	b.WriteString("\n== Patent evidence ==\n")
	b.WriteString(formatEvidence(patents))
	b.WriteString("\n\nDescribe the actual technical capabilities in these patents, then a section titled \"")
	b.WriteString(dualUseMarker)
	b.WriteString("\" listing capabilities that could undermine the company's public claims.")
	return b.String()
}
