package scroll

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// fakeSurface reveals one batch of answer hrefs on the first scroll-to-bottom
// after each extraction, so at most one batch per round. Waits return
// immediately unless delay is set.
type fakeSurface struct {
	mu sync.Mutex

	question string
	batches  [][]string
	revealed int
	armed    bool
	// attrOnly serves ids through data attributes instead of anchors.
	attrOnly bool
	// growing makes every height reading larger than the last.
	growing bool
	height  int64
	delay   time.Duration
	// onExtract runs after the nth anchor extraction (1-based).
	onExtract func(n int)

	navigations   []string
	anchorCalls   int
	heightReads   int
	clicks        []string
	controlFound  bool
	endPresses    int
	firstEndRound int
	wheelEvents   int
}

func (f *fakeSurface) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeSurface) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	var value any
	var hook func(int)
	var hookArg int
	switch script {
	case scriptHeight:
		f.heightReads++
		if f.growing {
			f.height += 100
		}
		value = f.height
	case scriptScrollBottom:
		if f.armed && f.revealed < len(f.batches) {
			f.revealed++
		}
		f.armed = false
	case scriptScrollTop:
	case scriptWheel:
		f.wheelEvents++
	case scriptAnswerAnchors:
		f.anchorCalls++
		f.armed = true
		hook, hookArg = f.onExtract, f.anchorCalls
		hrefs := []string{}
		if !f.attrOnly {
			for _, batch := range f.batches[:f.revealed] {
				for _, id := range batch {
					hrefs = append(hrefs, fmt.Sprintf("/question/%s/answer/%s?utm=1", f.question, id))
				}
			}
		}
		value = hrefs
	case scriptDetailViewIDs:
		ids := []string{}
		if f.attrOnly {
			for _, batch := range f.batches[:f.revealed] {
				for _, id := range batch {
					ids = append(ids, "answer:"+id)
				}
			}
		}
		ids = append(ids, "question:"+f.question)
		value = detailViewIDs{Path: "/question/" + f.question, IDs: ids}
	default:
		f.mu.Unlock()
		return fmt.Errorf("unexpected script %q", script)
	}
	f.mu.Unlock()

	if hook != nil {
		hook(hookArg)
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeSurface) Wait(ctx context.Context, _ time.Duration) error {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return ctx.Err()
}

func (f *fakeSurface) FindControl(_ context.Context, selectors []string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.controlFound || len(selectors) == 0 {
		return "", false, nil
	}
	return selectors[len(selectors)-1], true, nil
}

func (f *fakeSurface) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeSurface) PressKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == "End" {
		f.endPresses++
		if f.firstEndRound == 0 {
			// interaction precedes extraction within a round
			f.firstEndRound = f.anchorCalls + 1
		}
	}
	return nil
}

func (f *fakeSurface) HTML(context.Context) (string, error) {
	return "<html></html>", nil
}

var _ crawler.Surface = (*fakeSurface)(nil)

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}
