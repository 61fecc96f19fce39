package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// multipartCutoff is the bundle size above which the archive switches to a
// multipart upload.
const multipartCutoff = 5 * 1024 * 1024

// evidenceBundle is the JSON document archived per finalized request.
type evidenceBundle struct {
	MarketID        string         `json:"market_id"`
	RequestID       string         `json:"request_id"`
	Question        string         `json:"question"`
	Outcome         string         `json:"outcome"`
	Confidence      float64        `json:"confidence"`
	EvidenceSummary string         `json:"evidence_summary"`
	EvidenceURLs    []string       `json:"evidence_urls,omitempty"`
	Evidence        map[string]any `json:"evidence,omitempty"`
	FinalizedAt     string         `json:"finalized_at"`
}

// archiveEvidence writes the request's evidence bundle to cold storage.
// Archival is best effort: the resolution is already final and the audit log
// holds the transition, so an S3 outage only costs the cold copy.
func (s *Service) archiveEvidence(ctx context.Context, market domain.Market, req domain.OracleRequest) {
	if s.blob == nil {
		return
	}

	bundle := evidenceBundle{
		MarketID:        market.ID,
		RequestID:       req.ID,
		Question:        market.Question,
		Outcome:         req.ProposedOutcome,
		Confidence:      req.ConfidenceScore,
		EvidenceSummary: req.EvidenceSummary,
		EvidenceURLs:    req.EvidenceURLs,
		Evidence:        req.Evidence,
		FinalizedAt:     s.now().UTC().Format("2006-01-02T15:04:05Z"),
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode evidence bundle",
			"request_id", req.ID, "error", err)
		return
	}

	path := fmt.Sprintf("evidence/%s/%s.json", market.ID, req.ID)

	if len(data) > multipartCutoff {
		err = s.blob.PutMultipart(ctx, path, bytes.NewReader(data), multipartCutoff)
	} else {
		err = s.blob.Put(ctx, path, bytes.NewReader(data), "application/json")
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to archive evidence",
			"request_id", req.ID, "path", path, "error", err)
		return
	}

	s.logger.InfoContext(ctx, "archived evidence bundle",
		"request_id", req.ID, "path", path, "bytes", len(data))
}
