package protocol

import "github.com/xeipuuv/gojsonschema"

// requestSchema accepts any broker message shaped like a request: an
// object with a string action tag and optional string prompt/message.
// The action value itself is checked by ParseRequest, not the schema,
// so unrelated-but-well-formed messages fail recognition there.
const requestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"action": {"type": "string"},
		"prompt": {"type": "string"},
		"message": {"type": "string"}
	},
	"required": ["action"]
}`

func isRequestShaped(line []byte) bool {
	schemaLoader := gojsonschema.NewStringLoader(requestSchema)
	documentLoader := gojsonschema.NewBytesLoader(line)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return false
	}
	return result.Valid()
}
