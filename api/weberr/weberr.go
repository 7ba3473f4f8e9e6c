package weberr

import "errors"

// Opt decorates an error with what the error middleware needs to answer the
// request and log it.
type Opt func(error) error

func Wrap(err error, opts ...Opt) error {
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

func WithResponse(body interface{}, status int) Opt {
	return func(err error) error {
		return &annotated{error: err, body: body, status: status}
	}
}

func WithFields(fields map[string]interface{}) Opt {
	return func(err error) error {
		return &annotated{error: err, fields: fields}
	}
}

// annotated carries a response, log fields or both on top of its cause.
type annotated struct {
	error
	body   interface{}
	status int
	fields map[string]interface{}
}

func (a *annotated) Unwrap() error { return a.error }

// Response returns the outermost response attached to err.
func Response(err error) (body interface{}, status int, ok bool) {
	walk(err, func(a *annotated) bool {
		if a.status == 0 {
			return true
		}
		body, status, ok = a.body, a.status, true
		return false
	})
	return body, status, ok
}

// Fields merges the fields of every layer of err. A key set by an outer layer
// wins over the same key deeper in the chain.
func Fields(err error) (fields map[string]interface{}, ok bool) {
	walk(err, func(a *annotated) bool {
		for k, v := range a.fields {
			if fields == nil {
				fields = make(map[string]interface{})
			}
			if _, seen := fields[k]; !seen {
				fields[k] = v
			}
		}
		return true
	})
	return fields, fields != nil
}

func walk(err error, fn func(*annotated) bool) {
	for err != nil {
		var a *annotated
		if !errors.As(err, &a) || !fn(a) {
			return
		}
		err = a.error
	}
}
