// Package aierr 将各家模型 SDK 返回的错误归类为应用统一的上游错误。
package aierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"

	"docchat-go/internal/apperr"
)

// Classify 把 SDK 错误包装成 ErrRateLimited / ErrAuth / ErrNetwork / ErrInvalidRequest / ErrModel 之一。
// context.Canceled 原样返回，调用方据此判断是客户端主动放弃；已经归类过的错误也原样返回。
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	for _, known := range []error{apperr.ErrRateLimited, apperr.ErrAuth, apperr.ErrNetwork, apperr.ErrInvalidRequest, apperr.ErrModel} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, apperr.ErrNetwork)
	}
	if status := StatusCode(err); status != 0 {
		return fmt.Errorf("%v: %w", err, byStatus(status))
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%v: %w", err, apperr.ErrNetwork)
	}
	return fmt.Errorf("%v: %w", err, apperr.ErrModel)
}

func byStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return apperr.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.ErrAuth
	case status == http.StatusRequestTimeout || status >= 500:
		return apperr.ErrNetwork
	case status >= 400:
		return apperr.ErrInvalidRequest
	default:
		return apperr.ErrModel
	}
}

// StatusCode 从错误链中取出 HTTP 状态码，取不到时返回 0。
func StatusCode(err error) int {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return oaiAPI.HTTPStatusCode
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return code
		}
		if st := apiErr.GRPCStatus(); st != nil {
			return grpcToHTTP(st.Code())
		}
	}
	return 0
}

func grpcToHTTP(c codes.Code) int {
	switch c {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal:
		return http.StatusServiceUnavailable
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound:
		return http.StatusBadRequest
	default:
		return 0
	}
}
