package parser

import "fmt"

// ErrorKind identifies a parse error. The kind names are part of the
// host-visible contract: they appear verbatim in error output.
type ErrorKind string

// Syntax errors.
const (
	ErrPrimaryExprExpected         ErrorKind = "primary_expr_expected"
	ErrRightParenExpected          ErrorKind = "right_paren_expected"
	ErrRightSquareExpected         ErrorKind = "right_square_expected"
	ErrColonExpected               ErrorKind = "colon_expected"
	ErrColonForConditionalExpected ErrorKind = "colon_for_conditional_expected"
	ErrLeftBraceExpected           ErrorKind = "left_brace_expected"
	ErrLeftParenExpected           ErrorKind = "left_paren_expected"
	ErrArgumentListExpected        ErrorKind = "argument_list_expected"
	ErrIdentifierExpected          ErrorKind = "identifier_expected"
	ErrArrayItemSeparatorExpected  ErrorKind = "array_item_separator_expected"
	ErrObjectItemSeparatorExpected ErrorKind = "object_item_separator_expected"
	ErrSemicolonExpected           ErrorKind = "semicolon_expected"
	ErrWhileExpected               ErrorKind = "while_expected"
	ErrCatchFinallyExpected        ErrorKind = "catch_finally_expected"
	ErrInvalidExpression           ErrorKind = "invalid_expression"
	ErrInvalidSwitchBody           ErrorKind = "invalid_switch_body"
	ErrInvalidCharacter            ErrorKind = "invalid_character"
	ErrUnterminatedString          ErrorKind = "unterminated_string"
	ErrUnterminatedComment         ErrorKind = "unterminated_comment"
	ErrInvalidEscapeSequence       ErrorKind = "invalid_escape_sequence"
	ErrInvalidNumber               ErrorKind = "invalid_number"
	ErrMisplacedRightBrace         ErrorKind = "misplaced_right_brace"
	ErrUnexpectedEnd               ErrorKind = "unexpected_end"
	ErrExpressionExpected          ErrorKind = "expression_expected"
)

// Strict-mode errors.
const (
	ErrEvalCannotBeAssigned      ErrorKind = "eval_cannot_be_assigned"
	ErrArgumentsCannotBeAssigned ErrorKind = "arguments_cannot_be_assigned"
	ErrNoArgumentsExpected       ErrorKind = "no_arguments_expected"
	ErrOneArgumentExpected       ErrorKind = "one_argument_expected"
)

// Limit errors.
const (
	ErrLiteralLimitReached  ErrorKind = "literal_limit_reached"
	ErrRegisterLimitReached ErrorKind = "register_limit_reached"
	ErrStackLimitReached    ErrorKind = "stack_limit_reached"
	ErrArgumentLimitReached ErrorKind = "argument_limit_reached"
	ErrCodeSizeLimitReached ErrorKind = "code_size_limit_reached"
	ErrIdentifierTooLong    ErrorKind = "identifier_too_long"
	ErrStringTooLong        ErrorKind = "string_too_long"
)

// Resource errors.
const (
	ErrOutOfMemory ErrorKind = "out_of_memory"
)

// Control-flow errors.
const (
	ErrBreakNotInLoopOrSwitch ErrorKind = "break_not_in_loop_or_switch"
	ErrContinueNotInLoop      ErrorKind = "continue_not_in_loop"
	ErrDuplicateLabel         ErrorKind = "duplicate_label"
	ErrTargetLabelNotFound    ErrorKind = "target_label_not_found"
	ErrMultipleDefault        ErrorKind = "multiple_default_not_allowed"
	ErrCaseNotInSwitch        ErrorKind = "case_not_in_switch"
	ErrDefaultNotInSwitch     ErrorKind = "default_not_in_switch"
)

// Error is a parse error with the position of the offending token.
// The first error aborts the compilation; nothing is caught locally.
type Error struct {
	Kind   ErrorKind
	Line   int
	Column int
}

func (e *Error) Error() string {
	return fmt.Sprintf("Parse error '%s' at line: %d col: %d", e.Kind, e.Line, e.Column)
}

// raise unwinds the current compilation by a non-local jump to the
// boundary at the top of ParseScript / parseFunction. The panic is
// recovered there and every nested parser context releases its
// scratch on the way out.
func (ctx *context) raise(kind ErrorKind) {
	panic(&Error{Kind: kind, Line: ctx.token.line, Column: ctx.token.column})
}
