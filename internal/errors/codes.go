// Package errors provides the engine error taxonomy.
//
// Every failure surfaced across a package boundary carries a machine-readable
// Code so callers can apply the right propagation policy: content and script
// failures are logged and skipped during batch loads, protocol failures
// disconnect the offending session, capacity and schema failures are returned
// to the immediate caller. No code in this taxonomy is fatal to the process.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Content errors
	CodeContentMissingPath    Code = "CONTENT_MISSING_PATH"
	CodeContentInvalidAsset   Code = "CONTENT_INVALID_ASSET"
	CodeContentInvalidScript  Code = "CONTENT_INVALID_SCRIPT"
	CodeContentDuplicateName  Code = "CONTENT_DUPLICATE_NAME"
	CodeContentInvalidMapFile Code = "CONTENT_INVALID_MAP_FILE"

	// Script errors
	CodeScriptParse   Code = "SCRIPT_PARSE"
	CodeScriptRuntime Code = "SCRIPT_RUNTIME"
	CodeScriptNoEvent Code = "SCRIPT_UNKNOWN_EVENT"

	// Protocol errors
	CodeProtocolMalformedPacket Code = "PROTOCOL_MALFORMED_PACKET"
	CodeProtocolUnknownOpcode   Code = "PROTOCOL_UNKNOWN_OPCODE"
	CodeProtocolOutOfOrder      Code = "PROTOCOL_OUT_OF_ORDER"
	CodeProtocolUnknownString   Code = "PROTOCOL_UNKNOWN_STRING"

	// Capacity errors
	CodeCapacityMatchFull Code = "CAPACITY_MATCH_FULL"

	// Schema errors
	CodeSchemaTypeMismatch    Code = "SCHEMA_TYPE_MISMATCH"
	CodeSchemaMissingRequired Code = "SCHEMA_MISSING_REQUIRED"
	CodeSchemaUnknownProperty Code = "SCHEMA_UNKNOWN_PROPERTY"
)

// Class groups codes by the propagation policy they follow.
type Class int

const (
	// ClassUnknown covers codes without a dedicated policy.
	ClassUnknown Class = iota
	// ClassContent failures are logged and the offending entry skipped.
	ClassContent
	// ClassScript failures abort only the failing handler or load entry.
	ClassScript
	// ClassProtocol failures disconnect the offending session.
	ClassProtocol
	// ClassCapacity failures are returned to the immediate caller.
	ClassCapacity
	// ClassSchema failures reject the offending assignment.
	ClassSchema
)

// ClassOf reports the propagation class for a code.
func ClassOf(code Code) Class {
	switch code {
	case CodeContentMissingPath, CodeContentInvalidAsset, CodeContentInvalidScript,
		CodeContentDuplicateName, CodeContentInvalidMapFile:
		return ClassContent
	case CodeScriptParse, CodeScriptRuntime, CodeScriptNoEvent:
		return ClassScript
	case CodeProtocolMalformedPacket, CodeProtocolUnknownOpcode,
		CodeProtocolOutOfOrder, CodeProtocolUnknownString:
		return ClassProtocol
	case CodeCapacityMatchFull:
		return ClassCapacity
	case CodeSchemaTypeMismatch, CodeSchemaMissingRequired, CodeSchemaUnknownProperty:
		return ClassSchema
	default:
		return ClassUnknown
	}
}
