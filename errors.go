package lila

import "fmt"

// ErrorCode identifies the kind of language-level failure carried by an
// Error value. Error values are first-class data returned by
// primitives; they are never thrown as Go errors.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrParseEndOfInput
	ErrParseUnexpectedNull
	ErrParseUnexpectedSemiColon
	ErrParseUnexpectedEscape
	ErrParseUnexpectedEndOfFile
	ErrParseUnexpectedEndList
	ErrParseMissingSymbolName
	ErrImportNotFound
	ErrSymbolNotFound
	ErrWrongNumberOfArguments
	ErrNonNumericArguments
	ErrGenericFailure
)

var errorCodeNames = map[ErrorCode]string{
	ErrNone:                     "None",
	ErrParseEndOfInput:          "ParseEndOfInput",
	ErrParseUnexpectedNull:      "ParseUnexpectedNull",
	ErrParseUnexpectedSemiColon: "ParseUnexpectedSemiColon",
	ErrParseUnexpectedEscape:    "ParseUnexpectedEscape",
	ErrParseUnexpectedEndOfFile: "ParseUnexpectedEndOfFile",
	ErrParseUnexpectedEndList:   "ParseUnexpectedEndList",
	ErrParseMissingSymbolName:   "ParseMissingSymbolName",
	ErrImportNotFound:           "ImportNotFound",
	ErrSymbolNotFound:           "SymbolNotFound",
	ErrWrongNumberOfArguments:   "WrongNumberOfArguments",
	ErrNonNumericArguments:      "NonNumericArguments",
	ErrGenericFailure:           "GenericFailure",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ResultCode is the embedding-boundary status. It is distinct from
// ErrorCode: ResultCode crosses the host/VM boundary, ErrorCode lives inside
// language-level Error values.
type ResultCode int

const (
	Ok           ResultCode = 0
	Fail         ResultCode = -1
	FileNotFound ResultCode = -2
)

func (r ResultCode) String() string {
	switch r {
	case Ok:
		return "Ok"
	case Fail:
		return "Fail"
	case FileNotFound:
		return "FileNotFound"
	default:
		return fmt.Sprintf("ResultCode(%d)", int(r))
	}
}

// LilaError is the host-visible Go error returned by the embedding API
// when an operation can't proceed for reasons outside the language
// itself (a bad stack index, a host hook failure). Language-level failures
// never surface this way; they come back as Error values.
type LilaError struct {
	Code    ResultCode
	Message string
}

func (e *LilaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ResultCode, format string, args ...interface{}) *LilaError {
	return &LilaError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// invariant panics to report a violated invariant — a condition that
// should be impossible given the evaluator's own guarantees, and so is
// not recoverable at the script level.
func invariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("lila: invariant violated: "+format, args...))
	}
}
