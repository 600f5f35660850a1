package headless

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var hasText = regexp.MustCompile(`^(.*):has-text\((?:"([^"]*)"|'([^']*)')\)$`)

// control is a selector split into its CSS part and an optional text filter.
type control struct {
	CSS  string `json:"css"`
	Text string `json:"text,omitempty"`
}

// parseControl understands the `:has-text("…")` suffix, which browsers do
// not support natively.
func parseControl(selector string) control {
	m := hasText.FindStringSubmatch(selector)
	if m == nil {
		return control{CSS: selector}
	}
	text := m[2]
	if text == "" {
		text = m[3]
	}
	css := m[1]
	if css == "" {
		css = "*"
	}
	return control{CSS: css, Text: text}
}

const controlResolver = `
const visible = (el) => {
  if (!el || el.disabled || el.getAttribute('aria-disabled') === 'true') return false;
  const style = window.getComputedStyle(el);
  if (style.visibility === 'hidden' || style.display === 'none') return false;
  const rect = el.getBoundingClientRect();
  return rect.width > 0 && rect.height > 0;
};
const resolve = (c) => {
  let nodes = [];
  try { nodes = Array.from(document.querySelectorAll(c.css)); } catch (e) { return null; }
  return nodes.find((el) => visible(el) && (!c.text || (el.textContent || '').includes(c.text))) || null;
};`

func findScript(selectors []string) (string, error) {
	controls := make([]control, len(selectors))
	for i, sel := range selectors {
		controls[i] = parseControl(sel)
	}
	raw, err := json.Marshal(controls)
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}
	return fmt.Sprintf(`(() => {%s
  const controls = %s;
  for (let i = 0; i < controls.length; i++) {
    if (resolve(controls[i])) return i;
  }
  return -1;
})()`, controlResolver, raw), nil
}

func clickScript(selector string) (string, error) {
	raw, err := json.Marshal(parseControl(selector))
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	return fmt.Sprintf(`(() => {%s
  const el = resolve(%s);
  if (!el) return false;
  el.scrollIntoView({block: 'center'});
  el.click();
  return true;
})()`, controlResolver, raw), nil
}
