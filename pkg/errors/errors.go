package errors

import (
	stderrors "errors"
	"fmt"
)

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// CodedError 携带业务错误码以及底层原因。
type CodedError struct {
	Cause error
	Definition
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// Is 让 errors.Is(err, errors.ProofUploadFailed) 按错误码匹配。
func (e *CodedError) Is(target error) bool {
	def, ok := target.(Definition)
	return ok && def.Code == e.Code
}

// Wrap 用业务错误码包装底层错误。
func Wrap(def Definition, cause error) error {
	return &CodedError{Definition: def, Cause: cause}
}

// DefinitionOf 从错误链中取出业务错误码，找不到时 ok 为 false。
func DefinitionOf(err error) (Definition, bool) {
	var coded *CodedError
	if stderrors.As(err, &coded) {
		return coded.Definition, true
	}
	var def Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	return Definition{}, false
}

// 认证相关错误。
var (
	NotAuthenticated       = Definition{Code: "NOT_AUTHENTICATED", Message: "Not authenticated"}
	Unauthorized           = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	Forbidden              = Definition{Code: "FORBIDDEN", Message: "Insufficient permissions"}
	InvalidUserID          = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format"}
	InvalidCredentials     = Definition{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password"}
	EmailAlreadyRegistered = Definition{Code: "EMAIL_ALREADY_REGISTERED", Message: "Email already registered"}
	InvalidRequest         = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	UserNotFound           = Definition{Code: "USER_NOT_FOUND", Message: "User not found"}
	TooManyRequests        = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests, please try again later"}
)

// 药品模块错误。
var (
	MedicationNameInvalid = Definition{Code: "MEDICATION_NAME_INVALID", Message: "Name must be at least 2 characters"}
	MedicationNotFound    = Definition{Code: "MEDICATION_NOT_FOUND", Message: "Medication not found"}
)

// 服药记录模块错误。
var (
	ProofUploadFailed = Definition{Code: "PROOF_UPLOAD_FAILED", Message: "Image upload failed"}
	ProofPathInvalid  = Definition{Code: "PROOF_PATH_INVALID", Message: "Proof path invalid"}
	ProofTooLarge     = Definition{Code: "PROOF_TOO_LARGE", Message: "Proof image too large"}
	ProofTypeInvalid  = Definition{Code: "PROOF_TYPE_INVALID", Message: "Proof must be an image"}
	LogCreationFailed = Definition{Code: "LOG_CREATION_FAILED", Message: "Failed to mark as taken"}
	QueryFailed       = Definition{Code: "QUERY_FAILED", Message: "Failed to load data"}
	SignedURLFailed   = Definition{Code: "SIGNED_URL_FAILED", Message: "Could not create signed URL"}
)

// 照护者模块错误。
var (
	CaretakerNotLinked   = Definition{Code: "CARETAKER_NOT_LINKED", Message: "Caretaker is not linked to this patient"}
	CaretakerRoleInvalid = Definition{Code: "CARETAKER_ROLE_INVALID", Message: "User is not a caretaker"}
	CaretakerSelfLink    = Definition{Code: "CARETAKER_SELF_LINK", Message: "Cannot link yourself as caretaker"}
)

// 基础设施错误。
var (
	ErrTokenGeneratorNotInitialized = stderrors.New("token generator not initialized")
	ErrUnexpectedSigningMethod      = stderrors.New("unexpected signing method")
	ErrInvalidToken                 = stderrors.New("invalid token")
	ErrInvalidTokenClaims           = stderrors.New("invalid token claims")
	ErrInvalidTokenType             = stderrors.New("invalid token type")
	ErrUserIDNotFound               = stderrors.New("user id not found in token")
)

// SkipMessageError 表示消息无需处理（重复投递等），消费者直接 ack。
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return e.Reason
}

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	NotAuthenticated.Code:       NotAuthenticated,
	Unauthorized.Code:           Unauthorized,
	Forbidden.Code:              Forbidden,
	InvalidUserID.Code:          InvalidUserID,
	InvalidCredentials.Code:     InvalidCredentials,
	EmailAlreadyRegistered.Code: EmailAlreadyRegistered,
	InvalidRequest.Code:         InvalidRequest,
	UserNotFound.Code:           UserNotFound,
	TooManyRequests.Code:        TooManyRequests,
	MedicationNameInvalid.Code:  MedicationNameInvalid,
	MedicationNotFound.Code:     MedicationNotFound,
	ProofUploadFailed.Code:      ProofUploadFailed,
	ProofPathInvalid.Code:       ProofPathInvalid,
	ProofTooLarge.Code:          ProofTooLarge,
	ProofTypeInvalid.Code:       ProofTypeInvalid,
	LogCreationFailed.Code:      LogCreationFailed,
	QueryFailed.Code:            QueryFailed,
	SignedURLFailed.Code:        SignedURLFailed,
	CaretakerNotLinked.Code:     CaretakerNotLinked,
	CaretakerRoleInvalid.Code:   CaretakerRoleInvalid,
	CaretakerSelfLink.Code:      CaretakerSelfLink,
}

// Get 根据错误码返回 Definition，若不存在则返回兜底 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
