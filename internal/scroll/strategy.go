package scroll

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// Strategy extracts reference keys currently present on the surface.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, surface crawler.Surface) ([]crawler.Reference, error)
}

// DefaultStrategies is the fallback chain used by the collector.
func DefaultStrategies() []Strategy {
	return []Strategy{AnchorStrategy{}, AttributeStrategy{}}
}

// AnchorStrategy reads answer links straight from anchor elements.
type AnchorStrategy struct{}

// Name implements Strategy.
func (AnchorStrategy) Name() string { return "anchor" }

// Extract implements Strategy.
func (AnchorStrategy) Extract(ctx context.Context, surface crawler.Surface) ([]crawler.Reference, error) {
	var hrefs []string
	if err := surface.Evaluate(ctx, scriptAnswerAnchors, &hrefs); err != nil {
		return nil, fmt.Errorf("evaluate anchors: %w", err)
	}
	refs := make([]crawler.Reference, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := crawler.ParseReference(absoluteHref(href))
		if err != nil {
			continue
		}
		if _, ok := ref.(crawler.AnswerRef); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func absoluteHref(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return crawler.SiteURL + href
	default:
		return href
	}
}

var (
	detailViewAnswer = regexp.MustCompile(`answer:(\d+)`)
	questionInPath   = regexp.MustCompile(`/question/(\d+)`)
)

// AttributeStrategy rebuilds answer references from tracking attributes and
// the question id in the current location.
type AttributeStrategy struct{}

// Name implements Strategy.
func (AttributeStrategy) Name() string { return "attribute" }

type detailViewIDs struct {
	Path string   `json:"path"`
	IDs  []string `json:"ids"`
}

// Extract implements Strategy.
func (AttributeStrategy) Extract(ctx context.Context, surface crawler.Surface) ([]crawler.Reference, error) {
	var raw detailViewIDs
	if err := surface.Evaluate(ctx, scriptDetailViewIDs, &raw); err != nil {
		return nil, fmt.Errorf("evaluate detail view ids: %w", err)
	}
	q := questionInPath.FindStringSubmatch(raw.Path)
	if q == nil {
		return nil, nil
	}
	refs := make([]crawler.Reference, 0, len(raw.IDs))
	for _, id := range raw.IDs {
		if m := detailViewAnswer.FindStringSubmatch(id); m != nil {
			refs = append(refs, crawler.AnswerRef{QuestionID: q[1], AnswerID: m[1]})
		}
	}
	return refs, nil
}
