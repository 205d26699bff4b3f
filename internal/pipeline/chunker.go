package pipeline

import (
	"fmt"

	"docchat-go/internal/apperr"
	"docchat-go/internal/model"
)

// Chunk 将文本按 rune 切分为长度为 size、相邻块重叠 overlap 个字符的窗口。
// 每个窗口从上一个窗口起点后移 size-overlap 处开始，最后一个窗口在文本末尾结束。
// 长度不超过 size 的文本（包括空文本）只产生一个与原文相同的块。
func Chunk(text string, size, overlap int) ([]model.TextChunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, apperr.Wrap(apperr.KindConfig, fmt.Sprintf("size=%d overlap=%d", size, overlap), apperr.ErrInvalidChunkParams)
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []model.TextChunk{{ID: 0, Text: text, SourceOffset: 0}}, nil
	}

	step := size - overlap
	chunks := make([]model.TextChunk, 0, (len(runes)-overlap+step-1)/step)
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, model.TextChunk{
			ID:           len(chunks),
			Text:         string(runes[i:end]),
			SourceOffset: i,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Reassemble 是 Chunk 的逆操作：去掉每个后续块开头与前一块重叠的部分后拼接。
func Reassemble(chunks []model.TextChunk) string {
	var out []rune
	for _, c := range chunks {
		r := []rune(c.Text)
		skip := len(out) - c.SourceOffset
		if skip < 0 {
			skip = 0
		}
		if skip > len(r) {
			skip = len(r)
		}
		out = append(out, r[skip:]...)
	}
	return string(out)
}
