package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// expandControls reveal the full question description.
var expandControls = []string{
	`button:has-text("显示全部")`,
	`button:has-text("展开")`,
	`button[class*="QuestionRichText-more"]`,
	`button[class*="expand"]`,
	`.QuestionRichText-more button`,
	`.QuestionRichText .Button--plain`,
}

const (
	scriptDetailLength = `(() => {
  const el = document.querySelector('.QuestionRichText, .QuestionRichText--expandable');
  return el ? el.textContent.length : 0;
})()`

	topicLoadWait   = 3 * time.Second
	expandPoll      = time.Second
	expandMaxPolls  = 10
	expandAfterWait = 2 * time.Second
)

// extractTopic opens the question page, expands its description when a
// control is present, and upserts the parsed topic.
func (d *Dispatcher) extractTopic(ctx context.Context, questionURL string) error {
	surface := d.deps.Surface
	if surface == nil || d.deps.Topics == nil {
		return errors.New("no render surface for topic extraction")
	}
	if err := surface.Navigate(ctx, questionURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	_ = surface.Wait(ctx, topicLoadWait)

	if selector, found, err := surface.FindControl(ctx, expandControls); err == nil && found {
		var before int
		_ = surface.Evaluate(ctx, scriptDetailLength, &before)
		if err := surface.Click(ctx, selector); err == nil {
			for range expandMaxPolls {
				if surface.Wait(ctx, expandPoll) != nil {
					break
				}
				var after int
				if err := surface.Evaluate(ctx, scriptDetailLength, &after); err == nil && after > before {
					break
				}
			}
			_ = surface.Wait(ctx, expandAfterWait)
		}
	}

	html, err := surface.HTML(ctx)
	if err != nil {
		return fmt.Errorf("read html: %w", err)
	}
	topic, err := d.deps.Topics.ExtractTopic(html, questionURL)
	if err != nil {
		return fmt.Errorf("extract topic: %w", err)
	}
	if err := d.deps.Sink.StoreTopic(ctx, topic); err != nil {
		return fmt.Errorf("store topic: %w", err)
	}
	return nil
}
