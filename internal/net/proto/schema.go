package proto

import (
	"github.com/invopop/jsonschema"
)

// JSONSchema describes Number as either a JSON number or a numeric string.
func (Number) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string", Pattern: `^\s*-?[0-9.eE+-]+\s*$`},
			{Type: "null"},
		},
	}
}

// serverMessages lists every payload the server emits, in schema order.
func serverMessages() []ServerMessage {
	return []ServerMessage{
		&Init{},
		&Snapshot{},
		&PlayerJoined{},
		&PlayerLeft{},
		&Teleport{},
		&FloatText{},
		&CastAck{},
		&CastDenied{},
		&ClassSelected{},
		&Heartbeat{},
	}
}

// BuildSchema reflects the wire protocol into a single JSON schema document.
// The root accepts any client or server message; each variant is titled with
// its type identifier.
func BuildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}

	client := reflector.Reflect(new(ClientMessage))
	client.Version = ""
	client.Title = "Client message"
	client.Description = "Messages accepted from a connected client: input, chooseClass, cast, heartbeat."

	variants := []*jsonschema.Schema{client}
	for _, msg := range serverMessages() {
		schema := reflector.Reflect(msg)
		schema.Version = ""
		schema.Title = msg.MessageType()
		schema.Description = "Server message of type " + msg.MessageType() + "."
		variants = append(variants, schema)
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Drakantos realtime protocol",
		Description: "Websocket JSON messages exchanged between the game server and its clients.",
		OneOf:       variants,
	}
}
