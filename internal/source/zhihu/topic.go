package zhihu

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/harvester/internal/crawler"
)

var (
	questionIDPath = regexp.MustCompile(`/question/(\d+)`)

	answerCountText   = regexp.MustCompile(`(\d+(?:,\d+)*)\s*(?:个回答|个答案)`)
	followerCountText = regexp.MustCompile(`(\d+(?:,\d+)*)\s*(?:人关注|关注者)`)
	viewCountText     = regexp.MustCompile(`(\d+(?:,\d+)*)\s*(?:次浏览|被浏览)`)
)

// controlLabels are button captions that leak into rich-text extraction.
var controlLabels = map[string]bool{"显示全部": true, "展开": true, "收起": true, "编辑": true}

// ExtractTopic parses question metadata from a rendered question page.
func (c *Client) ExtractTopic(html string, questionURL string) (crawler.QuestionTopic, error) {
	m := questionIDPath.FindStringSubmatch(questionURL)
	if m == nil {
		return crawler.QuestionTopic{}, fmt.Errorf("extract topic: no question id in %q", questionURL)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawler.QuestionTopic{}, fmt.Errorf("extract topic: %w", err)
	}

	topic := crawler.QuestionTopic{
		ID:     m[1],
		URL:    questionURL,
		Title:  questionTitle(doc),
		Detail: questionDetail(doc),
		Topics: questionTopics(doc),
	}
	text := doc.Text()
	topic.AnswerCount = countIn(answerCountText, text)
	topic.FollowerCount = countIn(followerCountText, text)
	topic.ViewCount = countIn(viewCountText, text)

	author := doc.Find(`.QuestionHeader a[href*="/people/"]`).First()
	if href, ok := author.Attr("href"); ok {
		topic.AuthorToken = crawler.LastPathSegment(href)
		topic.AuthorName = strings.TrimSpace(author.Text())
	}
	return topic, nil
}

func questionTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1.QuestionHeader-title", ".QuestionHeader-main h1", "title"} {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			title, _, _ = strings.Cut(title, " - 知乎")
			return strings.TrimSpace(title)
		}
	}
	return ""
}

func questionDetail(doc *goquery.Document) string {
	selectors := []string{
		".QuestionRichText.QuestionRichText--expandable",
		".QuestionRichText",
		"span#content",
		".QuestionHeader-detail",
	}
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if detail := richText(node); detail != "" {
			return detail
		}
	}
	return ""
}

// richText joins the text nodes under s, skipping buttons and control captions.
func richText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "button" {
				return
			}
			if goquery.NodeName(child) == "#text" {
				text := strings.TrimSpace(strings.Trim(child.Text(), "\u200b\ufe0e"))
				if text != "" && !controlLabels[text] {
					parts = append(parts, text)
				}
				return
			}
			walk(child)
		})
	}
	walk(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.Join(parts, " "), " "))
}

func questionTopics(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	doc.Find(".QuestionHeader-topics a, .QuestionTopic a").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			seen[t] = struct{}{}
		}
	})
	topics := make([]string, 0, len(seen))
	for t := range seen {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func countIn(re *regexp.Regexp, text string) int64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	return n
}
