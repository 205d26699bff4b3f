// Package apperr 定义了应用的错误分类（输入错误、校验错误、上游错误、配置错误）。
//
// 每个具体失败都有一个哨兵错误，调用方通过 errors.Is 判断具体原因，
// 通过 KindOf 决定 HTTP 状态码与返回给客户端的文案。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 是错误的大类。
type Kind int

const (
	// KindUpstream 是默认大类：抽取、向量化或模型调用失败，对外只返回通用文案。
	KindUpstream Kind = iota
	// KindInput 表示缺少文件或消息等用户可修正的问题。
	KindInput
	// KindValidation 表示文档未通过分类等校验。
	KindValidation
	// KindConfig 表示配置错误，启动阶段即为致命错误。
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindValidation:
		return "validation"
	case KindConfig:
		return "config"
	default:
		return "upstream"
	}
}

// Error 携带错误大类、可以安全返回给客户端的文案以及底层原因。
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建一个不带底层原因的错误。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 用给定的大类和文案包装 err。err 为 nil 时返回 nil。
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Input 是 New(KindInput, ...) 的简写。
func Input(format string, args ...interface{}) *Error {
	return New(KindInput, fmt.Sprintf(format, args...))
}

// Validation 是 New(KindValidation, ...) 的简写。
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// Config 是 New(KindConfig, ...) 的简写。
func Config(format string, args ...interface{}) *Error {
	return New(KindConfig, fmt.Sprintf(format, args...))
}

// KindOf 返回错误链中第一个 *Error 的大类，没有则视为上游错误。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// PublicMessage 返回可以展示给客户端的文案。
// 只有输入类和校验类错误会透出自身文案，其余一律使用 fallback。
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && (e.Kind == KindInput || e.Kind == KindValidation) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// IsUserError 判断错误是否可由用户自行修正（HTTP 400）。
func IsUserError(err error) bool {
	k := KindOf(err)
	return k == KindInput || k == KindValidation
}
