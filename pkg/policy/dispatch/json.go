package dispatch

import "encoding/json"

type refErrorJSON struct {
	Ref   string `json:"ref"`
	Error string `json:"error"`
}

func marshalRefError(ref string, err error) ([]byte, error) {
	out := refErrorJSON{Ref: ref}
	if err != nil {
		out.Error = err.Error()
	}
	return json.Marshal(out)
}

// MarshalJSON renders the handler error, if any, as a message.
func (inv Invocation) MarshalJSON() ([]byte, error) {
	type plain Invocation
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(inv)}
	if inv.Err != nil {
		out.Error = inv.Err.Error()
	}
	return json.Marshal(out)
}
