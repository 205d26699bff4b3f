package apperr

import "errors"

// 具体失败原因。它们本身就是 *Error，因此既能 errors.Is 匹配，也带有大类。
var (
	ErrUnsupportedFormat  = New(KindInput, "Only PDF documents are supported")
	ErrCorruptFile        = New(KindUpstream, "document could not be parsed")
	ErrEmptyDocument      = New(KindValidation, "The document contains no extractable text")
	ErrNotResume          = New(KindValidation, "Please upload a valid resume")
	ErrInvalidChunkParams = New(KindConfig, "chunk overlap must be >= 0 and smaller than chunk size")

	ErrRateLimited = New(KindUpstream, "provider rate limit exceeded")
	ErrAuth        = New(KindUpstream, "provider rejected the credentials")
	ErrNetwork     = New(KindUpstream, "provider unreachable")
	ErrModel       = New(KindUpstream, "model call failed")
	// ErrInvalidRequest 是服务商以 4xx 拒绝的请求，重试结果不会变化。
	ErrInvalidRequest = New(KindUpstream, "provider rejected the request")

	ErrLengthMismatch    = New(KindUpstream, "chunk and embedding counts differ")
	ErrDimensionMismatch = New(KindUpstream, "embedding dimension mismatch")
	ErrModelMismatch     = New(KindConfig, "embedding model differs from the one the index was built with")

	ErrNoIndexAvailable = New(KindInput, "No document has been processed yet")
)

// IsTransient 判断上游错误是否值得重试：限流、网络或 5xx、无法解析的响应。
// ErrInvalidRequest 与 ErrAuth 不重试。
func IsTransient(err error) bool {
	if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrAuth) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork) || errors.Is(err, ErrModel)
}
