package errcode

import "cvix/internal/generr"

// 错误码约定：
// - 0：无错误
// - 4xxx：调用方可修正的错误（输入校验、被拒绝的内容）
// - 5xxx：系统错误（模板、编译器、超时）
const (
	OK                = 0
	ValidationFailed  = 4000
	Unauthorized      = 4001
	NotFound          = 4004
	PayloadTooLarge   = 4013
	ForbiddenContent  = 4022
	RateLimited       = 4029
	TemplateError     = 5001
	CompilationError  = 5002
	GenerationTimeout = 5004
	Canceled          = 4990
	SystemError       = 5000
)

// ForKind 返回错误类别对应的业务码。
func ForKind(kind generr.Kind) int {
	switch kind {
	case generr.KindValidation:
		return ValidationFailed
	case generr.KindSecurity:
		return ForbiddenContent
	case generr.KindTemplate:
		return TemplateError
	case generr.KindCompilation:
		return CompilationError
	case generr.KindTimeout:
		return GenerationTimeout
	case generr.KindCanceled:
		return Canceled
	case generr.KindUnknown:
		return SystemError
	}
	return SystemError
}
