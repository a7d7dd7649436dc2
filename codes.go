package authcore

import "errors"

// ErrorCode is the stable machine-readable code attached to engine failures.
// The numbering follows the E_000x convention of the upstream gateway that
// consumes this engine; codes are part of the wire contract and must not be
// renumbered.
type ErrorCode string

const (
	// CodePasswordMismatch is reserved in the gateway catalog; no engine
	// operation currently emits it ([ErrPasswordMismatch] maps to E_0005).
	CodePasswordMismatch    ErrorCode = "E_0001"
	CodeAccountNotFound     ErrorCode = "E_0002"
	CodeInvalidCredentials  ErrorCode = "E_0003"
	CodeDuplicateEmail      ErrorCode = "E_0004"
	CodeConfirmMismatch     ErrorCode = "E_0005"
	CodeVerificationInvalid ErrorCode = "E_0006"
	CodeTokenInvalid        ErrorCode = "E_0007"
	CodeUnknown             ErrorCode = "UNKNOWN"
)

// Lang selects the localized message catalog for an [ErrorCode].
type Lang string

const (
	// LangEn selects English messages.
	LangEn Lang = "en"
	// LangCn selects Chinese messages.
	LangCn Lang = "cn"
)

var codeMessages = map[ErrorCode]map[Lang]string{
	CodePasswordMismatch:    {LangEn: "Passwords do not match", LangCn: "密码不匹配"},
	CodeAccountNotFound:     {LangEn: "User not found", LangCn: "找不到用戶"},
	CodeInvalidCredentials:  {LangEn: "Invalid credentials", LangCn: "無效的憑證"},
	CodeDuplicateEmail:      {LangEn: "Already registered", LangCn: "已經註冊"},
	CodeConfirmMismatch:     {LangEn: "Confirmed password does not match", LangCn: "確認密碼不匹配"},
	CodeVerificationInvalid: {LangEn: "Invalid email token", LangCn: "無效的email令牌"},
	CodeTokenInvalid:        {LangEn: "Invalid token", LangCn: "無效的令牌"},
	CodeUnknown:             {LangEn: "Unknown error", LangCn: "未知錯誤"},
}

// Code maps an engine error to its stable [ErrorCode]. Errors that have no
// dedicated code (backend failures, token verification failures) map to
// [CodeUnknown]; callers should treat those as internal.
func Code(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountUnverified), errors.Is(err, ErrUnauthorized):
		return CodeInvalidCredentials
	case errors.Is(err, ErrDuplicateEmail):
		return CodeDuplicateEmail
	case errors.Is(err, ErrPasswordMismatch):
		return CodeConfirmMismatch
	case errors.Is(err, ErrVerificationInvalid):
		return CodeVerificationInvalid
	case errors.Is(err, ErrResetInvalid), errors.Is(err, ErrRefreshRevoked),
		errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrBadSignature):
		return CodeTokenInvalid
	default:
		return CodeUnknown
	}
}

// Message returns the localized message for a code. Unknown codes and
// unknown languages fall back to the English text of [CodeUnknown].
func Message(code ErrorCode, lang Lang) string {
	msgs, ok := codeMessages[code]
	if !ok {
		msgs = codeMessages[CodeUnknown]
	}
	if msg, ok := msgs[lang]; ok {
		return msg
	}
	return msgs[LangEn]
}
