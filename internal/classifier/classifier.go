// Package classifier 通过关键词命中数判断一段文本是否为简历。
package classifier

import (
	"strings"

	"docchat-go/internal/model"
)

// DefaultThreshold 是判定为简历所需的最少命中词数。
const DefaultThreshold = 3

// DefaultVocabulary 是简历常见的关键词（全部小写）。
var DefaultVocabulary = []string{
	"resume",
	"cv",
	"curriculum vitae",
	"experience",
	"education",
	"skills",
	"summary",
	"objective",
	"work history",
	"professional experience",
	"qualifications",
	"certifications",
	"contact information",
}

// Classifier 是基于关键词的简历判定器，零值不可用，请使用 New。
type Classifier struct {
	vocabulary []string
	threshold  int
}

// New 创建判定器。vocabulary 为空时使用 DefaultVocabulary，threshold <= 0 时使用 DefaultThreshold。
func New(vocabulary []string, threshold int) *Classifier {
	if len(vocabulary) == 0 {
		vocabulary = DefaultVocabulary
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	terms := make([]string, 0, len(vocabulary))
	seen := make(map[string]struct{}, len(vocabulary))
	for _, term := range vocabulary {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return &Classifier{vocabulary: terms, threshold: threshold}
}

// IsResume 统计文本中出现的不同关键词个数。
// 匹配是不区分大小写的子串匹配，嵌在其他单词里的关键词同样计数（例如 "cv" 命中 "cvs"）。
func (c *Classifier) IsResume(text string) model.ClassificationResult {
	lower := strings.ToLower(text)
	var matched []string
	for _, term := range c.vocabulary {
		if strings.Contains(lower, term) {
			matched = append(matched, term)
		}
	}
	return model.ClassificationResult{
		IsResume: len(matched) >= c.threshold,
		Hits:     len(matched),
		Matched:  matched,
	}
}

// Threshold 返回判定阈值。
func (c *Classifier) Threshold() int {
	return c.threshold
}
