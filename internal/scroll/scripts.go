package scroll

// Page scripts evaluated on the render surface. Extraction scripts return raw
// values; validation happens in Go.
const (
	scriptHeight       = `document.body.scrollHeight`
	scriptScrollBottom = `window.scrollTo(0, document.body.scrollHeight)`
	scriptScrollTop    = `window.scrollTo(0, 0)`
	scriptWheel        = `document.dispatchEvent(new WheelEvent('wheel', {deltaY: 1000, bubbles: true, cancelable: true}))`

	scriptAnswerAnchors = `(() => {
  const selectors = [
    'a[href*="/question/"][href*="/answer/"]',
    '[data-za-detail-view-element="answer"] a[href*="/answer/"]',
    '.ContentItem-title a[href*="/answer/"]',
    '.QuestionAnswer-content a[href*="/answer/"]'
  ];
  const out = [];
  for (const sel of selectors) {
    document.querySelectorAll(sel).forEach(el => { if (el.href) out.push(el.href); });
  }
  return out;
})()`

	scriptDetailViewIDs = `(() => ({
  path: window.location.pathname,
  ids: Array.from(document.querySelectorAll('[data-za-detail-view-id]'))
    .map(el => el.getAttribute('data-za-detail-view-id') || '')
}))()`
)

// LoadMoreControls are tried in order; the first visible and enabled match is clicked.
var LoadMoreControls = []string{
	`button:has-text("更多")`,
	`button:has-text("加载更多")`,
	`button:has-text("查看全部")`,
	`.Button--plain`,
	`button[class*="LoadMore"]`,
	`button[class*="Button"][class*="plain"]`,
	`.QuestionMainAction button`,
}
