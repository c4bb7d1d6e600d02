package pipeline

// Exchange is a single in-flight unit of work moving through a processor
// chain. Headers carry transport values (including the security token);
// properties carry cross-processor state for the lifetime of the exchange.
//
// An exchange is owned by one goroutine at a time and is not internally
// synchronized. Concurrent invocations of a pipeline each get their own
// exchange.
type Exchange struct {
	headers    map[string]any
	properties map[string]any
	err        error
}

// NewExchange creates an empty exchange.
func NewExchange() *Exchange {
	return &Exchange{
		headers:    make(map[string]any),
		properties: make(map[string]any),
	}
}

// Header returns the named header value and whether it is present.
func (e *Exchange) Header(name string) (any, bool) {
	v, ok := e.headers[name]
	return v, ok
}

// SetHeader sets a header value.
func (e *Exchange) SetHeader(name string, value any) {
	e.headers[name] = value
}

// Property returns the named exchange property and whether it is present.
func (e *Exchange) Property(name string) (any, bool) {
	v, ok := e.properties[name]
	return v, ok
}

// SetProperty sets an exchange property.
func (e *Exchange) SetProperty(name string, value any) {
	e.properties[name] = value
}

// RemoveProperty deletes an exchange property. Removing an absent
// property is a no-op.
func (e *Exchange) RemoveProperty(name string) {
	delete(e.properties, name)
}

// SetError attaches a terminal failure outcome to the exchange.
// Once set, the remaining chain is not run.
func (e *Exchange) SetError(err error) {
	e.err = err
}

// Err returns the failure outcome attached to the exchange, if any.
func (e *Exchange) Err() error {
	return e.err
}

// Failed reports whether a failure outcome has been attached.
func (e *Exchange) Failed() bool {
	return e.err != nil
}
