package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/apperr"
	"docchat-go/internal/classifier"
	"docchat-go/internal/model"
	"docchat-go/internal/vectorindex"
	"docchat-go/pkg/embedding/embeddingtest"
	"docchat-go/pkg/extract"
	"docchat-go/pkg/extract/pdftest"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, []byte, string) (string, error) {
	return s.text, s.err
}

func pdfDoc() model.Document {
	return model.Document{Data: pdftest.Build("placeholder"), MediaType: "application/pdf", FileName: "doc.pdf"}
}

func newTestProcessor(t *testing.T, ex extract.Extractor, emb *embeddingtest.Fake, size, overlap int) *Processor {
	t.Helper()
	p, err := NewProcessor(ex, emb, vectorindex.NewMemoryBuilder(), classifier.New(nil, 0), size, overlap)
	require.NoError(t, err)
	return p
}

func TestNewProcessor_InvalidChunkParams(t *testing.T) {
	_, err := NewProcessor(stubExtractor{}, embeddingtest.New(8), vectorindex.NewMemoryBuilder(), nil, 100, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidChunkParams))
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestProcess_BuildsIndex(t *testing.T) {
	text := strings.Repeat("alpha beta gamma ", 40)
	emb := embeddingtest.New(16)
	p := newTestProcessor(t, stubExtractor{text: text}, emb, 100, 20)

	res, err := p.Process(context.Background(), pdfDoc(), false)
	require.NoError(t, err)
	require.NotNil(t, res.Index)
	assert.Nil(t, res.Classification)
	assert.Equal(t, extract.MediaTypePDF, res.MediaType)
	assert.Equal(t, len(res.Chunks), res.Index.Len())
	assert.Equal(t, len(res.Chunks), emb.Calls())
	assert.Equal(t, 16, res.Index.Dimension())
	assert.Equal(t, "fake-embedding", res.Index.Model())
	assert.Equal(t, text, Reassemble(res.Chunks))
}

func TestProcess_ResumeAccepted(t *testing.T) {
	text := "Jane Doe. Summary: engineer. Experience at ACME. Education: MIT. Skills: Go."
	p := newTestProcessor(t, stubExtractor{text: text}, embeddingtest.New(8), 1000, 200)

	res, err := p.Process(context.Background(), pdfDoc(), true)
	require.NoError(t, err)
	require.NotNil(t, res.Classification)
	assert.True(t, res.Classification.IsResume)
	assert.Equal(t, 4, res.Classification.Hits)
	assert.Equal(t, 1, res.Index.Len())
}

func TestProcess_ResumeRejected(t *testing.T) {
	emb := embeddingtest.New(8)
	p := newTestProcessor(t, stubExtractor{text: "Quarterly sales report with experience notes"}, emb, 1000, 200)

	res, err := p.Process(context.Background(), pdfDoc(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotResume))
	assert.Equal(t, "Please upload a valid resume", apperr.PublicMessage(err, "x"))
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Classification.Hits)
	assert.Nil(t, res.Index)
	assert.Zero(t, emb.Calls())
}

func TestProcess_EmptyText(t *testing.T) {
	p := newTestProcessor(t, stubExtractor{text: "  \n "}, embeddingtest.New(8), 1000, 200)
	_, err := p.Process(context.Background(), pdfDoc(), false)
	assert.True(t, errors.Is(err, apperr.ErrEmptyDocument))
	assert.True(t, apperr.IsUserError(err))
}

func TestProcess_UnsupportedFormat(t *testing.T) {
	p := newTestProcessor(t, stubExtractor{text: "x"}, embeddingtest.New(8), 1000, 200)
	doc := model.Document{Data: []byte("just some words"), MediaType: "text/plain", FileName: "notes.txt"}
	_, err := p.Process(context.Background(), doc, false)
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedFormat))
}

func TestProcess_ExtractorError(t *testing.T) {
	p := newTestProcessor(t, stubExtractor{err: apperr.ErrCorruptFile}, embeddingtest.New(8), 1000, 200)
	_, err := p.Process(context.Background(), pdfDoc(), false)
	assert.True(t, errors.Is(err, apperr.ErrCorruptFile))
	assert.False(t, apperr.IsUserError(err))
}

func TestProcess_EmbeddingFailureProducesNoIndex(t *testing.T) {
	emb := embeddingtest.New(8)
	emb.Err = apperr.ErrNetwork
	emb.FailAfter = 2
	p := newTestProcessor(t, stubExtractor{text: strings.Repeat("word ", 100)}, emb, 50, 10)

	res, err := p.Process(context.Background(), pdfDoc(), false)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	assert.Equal(t, 3, emb.Calls())
}

func TestProcess_RealPDF(t *testing.T) {
	doc := model.Document{
		Data:     pdftest.Build("Summary and Experience", "Education and Skills"),
		FileName: "cv.pdf",
	}
	p := newTestProcessor(t, extract.NewPDFExtractor(), embeddingtest.New(8), 1000, 200)

	res, err := p.Process(context.Background(), doc, true)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Experience")
	assert.Contains(t, res.Text, "Skills")
	assert.True(t, res.Classification.IsResume)
}
